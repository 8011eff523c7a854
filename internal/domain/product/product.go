package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImageURL    string
	Available   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the subset of ids that exist. Missing ids are omitted,
	// not reported.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// Categories returns the distinct category names, sorted.
	Categories(ctx context.Context) ([]string, error)
}

// Writer persists catalog entries. Only seeding and import tools use it.
type Writer interface {
	Upsert(ctx context.Context, p Product) error
}
