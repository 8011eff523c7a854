// Package memory implements the domain repositories in process memory. It
// backs the memory storage mode and the handler tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/xenking/quickcart/internal/domain/product"
)

var (
	_ product.Repository = (*Products)(nil)
	_ product.Writer     = (*Products)(nil)
)

// Products is an in-memory catalog.
type Products struct {
	mu       sync.RWMutex
	products map[string]product.Product
}

// NewProducts creates a catalog holding the given products.
func NewProducts(products ...product.Product) *Products {
	r := &Products{products: make(map[string]product.Product, len(products))}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// List returns all products ordered by ID.
func (r *Products) List(_ context.Context) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetByID returns the product or product.ErrNotFound.
func (r *Products) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids, ordered by ID.
func (r *Products) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]product.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Categories returns the distinct non-empty categories, sorted.
func (r *Products) Categories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{})
	for _, p := range r.products {
		if p.Category != "" {
			set[p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out, nil
}

// Upsert stores p, replacing any product with the same ID.
func (r *Products) Upsert(_ context.Context, p product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}
