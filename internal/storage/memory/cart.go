package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/quickcart/internal/domain/cart"
)

var _ cart.Repository = (*Carts)(nil)

// Carts is an in-memory cart store. A single mutex makes every mutation
// atomic.
type Carts struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
	now   func() time.Time
}

// NewCarts creates an empty cart store.
func NewCarts() *Carts {
	return &Carts{
		carts: make(map[string]*cart.Cart),
		now:   time.Now,
	}
}

// Get returns a copy of the user's cart.
func (r *Carts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return &cart.Cart{
		UserID:    c.UserID,
		Items:     slices.Clone(c.Items),
		UpdatedAt: c.UpdatedAt,
	}, nil
}

// AddItem creates the cart when absent and merges item into it.
func (r *Carts) AddItem(_ context.Context, userID string, item cart.LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = &cart.Cart{UserID: userID, Items: []cart.LineItem{}}
		r.carts[userID] = c
	}
	if i := indexOf(c.Items, item.ProductID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
	} else {
		c.Items = append(c.Items, item)
	}
	c.UpdatedAt = r.now().UTC()
	return nil
}

// RemoveItem decrements or drops the line for productID.
func (r *Carts) RemoveItem(_ context.Context, userID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return cart.ErrCartNotFound
	}
	i := indexOf(c.Items, productID)
	if i < 0 {
		return cart.ErrItemNotInCart
	}
	if c.Items[i].Quantity > quantity {
		c.Items[i].Quantity -= quantity
	} else {
		c.Items = slices.Delete(c.Items, i, i+1)
	}
	c.UpdatedAt = r.now().UTC()
	return nil
}

// Clear empties the cart. A missing cart is left missing.
func (r *Carts) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[userID]; ok {
		c.Items = []cart.LineItem{}
		c.UpdatedAt = r.now().UTC()
	}
	return nil
}

func indexOf(items []cart.LineItem, productID string) int {
	return slices.IndexFunc(items, func(li cart.LineItem) bool {
		return li.ProductID == productID
	})
}
