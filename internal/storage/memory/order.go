package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/xenking/quickcart/internal/domain/order"
)

var _ order.Repository = (*Orders)(nil)

// Orders is an in-memory order store.
type Orders struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

// NewOrders creates an empty order store.
func NewOrders() *Orders {
	return &Orders{orders: make(map[string]order.Order)}
}

// Create stores a copy of o.
func (r *Orders) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.orders[o.ID] = stored
	return nil
}

// Get returns the order or order.ErrOrderNotFound.
func (r *Orders) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

// ListByUser returns the user's orders sorted by creation time.
func (r *Orders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			o.Items = slices.Clone(o.Items)
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

