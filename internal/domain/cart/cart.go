package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotInCart   = errors.New("product not in cart")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// LineItem is a product snapshot held in a cart. Name and UnitPrice are
// captured when the product is first added and never re-fetched.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal returns UnitPrice × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the per-user list of pending line items.
type Cart struct {
	UserID    string
	Items     []LineItem
	UpdatedAt time.Time
}

// Empty reports whether the cart has no items.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// Repository persists carts. Implementations must make AddItem a single
// atomic find-or-create so concurrent adds never produce duplicate carts or
// duplicate lines for the same product.
type Repository interface {
	// Get returns ErrCartNotFound when the user has never added anything.
	Get(ctx context.Context, userID string) (*Cart, error)
	// AddItem creates the cart when absent, then increments the quantity of
	// the line for item.ProductID or appends item as a new line.
	AddItem(ctx context.Context, userID string, item LineItem) error
	// RemoveItem decrements the line when quantity stays positive and removes
	// it otherwise. Returns ErrCartNotFound or ErrItemNotInCart.
	RemoveItem(ctx context.Context, userID, productID string, quantity int) error
	// Clear empties the cart items. A missing cart is not an error.
	Clear(ctx context.Context, userID string) error
}
