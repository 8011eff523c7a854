package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/quickcart/internal/domain/delivery"
)

var _ delivery.Repository = (*Deliveries)(nil)

// Deliveries is an in-memory delivery store keyed by order id.
type Deliveries struct {
	mu         sync.RWMutex
	deliveries map[string]delivery.Delivery
}

// NewDeliveries creates an empty delivery store.
func NewDeliveries() *Deliveries {
	return &Deliveries{deliveries: make(map[string]delivery.Delivery)}
}

// CreateIfAbsent stores d unless its order already has a delivery.
func (r *Deliveries) CreateIfAbsent(_ context.Context, d *delivery.Delivery) (*delivery.Delivery, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.deliveries[d.OrderID]; ok {
		return &existing, false, nil
	}
	stored := *d
	r.deliveries[d.OrderID] = stored
	return &stored, true, nil
}

// Get returns the delivery of orderID.
func (r *Deliveries) Get(_ context.Context, orderID string) (*delivery.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deliveries[orderID]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return &d, nil
}

// UpdateStatus sets the status when the current one is in from, or always
// when from is empty.
func (r *Deliveries) UpdateStatus(
	_ context.Context,
	orderID string,
	to delivery.Status,
	from []delivery.Status,
	at time.Time,
) (*delivery.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[orderID]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	if len(from) > 0 && !slices.Contains(from, d.Status) {
		return nil, delivery.ErrInvalidTransition
	}
	d.Status = to
	d.UpdatedAt = at
	r.deliveries[orderID] = d
	return &d, nil
}

// List returns all deliveries, oldest first.
func (r *Deliveries) List(_ context.Context) ([]delivery.Delivery, error) {
	return r.filter(func(delivery.Delivery) bool { return true }), nil
}

// ListByUser returns the deliveries of userID, oldest first.
func (r *Deliveries) ListByUser(_ context.Context, userID string) ([]delivery.Delivery, error) {
	return r.filter(func(d delivery.Delivery) bool { return d.UserID == userID }), nil
}

func (r *Deliveries) filter(keep func(delivery.Delivery) bool) []delivery.Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]delivery.Delivery, 0)
	for _, d := range r.deliveries {
		if keep(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b delivery.Delivery) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
