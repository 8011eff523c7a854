package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status of a placed order. Orders are immutable, so PLACED is the only value.
type Status string

// StatusPlaced is assigned to every order at creation.
const StatusPlaced Status = "PLACED"

// Sentinel errors for order operations.
var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")
)

// Order is the immutable record of a cart snapshot and its computed total.
type Order struct {
	ID          string
	UserID      string
	Items       []Item
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	Status      Status
}

// Item is a line item copied from the cart at placement time. The JSON
// tags define the layout of the JSONB items column.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders sorted by CreatedAt ascending.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
