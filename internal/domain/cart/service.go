package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/quickcart/internal/domain/product"
)

// Catalog resolves product ids. The cart-order service reaches the catalog
// over HTTP; tests and memory mode use a repository directly.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service implements cart mutations on top of a Repository.
type Service struct {
	catalog Catalog
	carts   Repository
}

// NewService creates a cart Service.
func NewService(catalog Catalog, carts Repository) *Service {
	return &Service{
		catalog: catalog,
		carts:   carts,
	}
}

// AddItem resolves productID through the catalog and adds quantity units of
// it to the user's cart, snapshotting name and price on first add.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return ErrProductNotFound
		}
		return errors.Wrapf(err, "lookup product %s", productID)
	}

	if err := s.carts.AddItem(ctx, userID, LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
	}); err != nil {
		return errors.Wrap(err, "add item")
	}
	return nil
}

// GetCart returns the user's cart, or an empty unstored cart when none exists.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return &Cart{UserID: userID, Items: []LineItem{}}, nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// RemoveItem subtracts quantity units of productID. Removing at least the
// current quantity drops the line instead of leaving it non-positive.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.carts.RemoveItem(ctx, userID, productID, quantity); err != nil {
		if errors.Is(err, ErrCartNotFound) || errors.Is(err, ErrItemNotInCart) {
			return err
		}
		return errors.Wrap(err, "remove item")
	}
	return nil
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
