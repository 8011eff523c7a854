package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for delivery operations.
var (
	ErrNotFound          = errors.New("delivery not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// Status is a delivery lifecycle stage.
type Status string

// Vocabulary in lifecycle order.
const (
	StatusCreated        Status = "CREATED"
	StatusPlaced         Status = "PLACED"
	StatusPacked         Status = "PACKED"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
)

var statusRank = map[Status]int{
	StatusCreated:        0,
	StatusPlaced:         1,
	StatusPacked:         2,
	StatusOutForDelivery: 3,
	StatusDelivered:      4,
}

// Statuses returns the vocabulary in lifecycle order.
func Statuses() []Status {
	return []Status{StatusCreated, StatusPlaced, StatusPacked, StatusOutForDelivery, StatusDelivered}
}

// ParseStatus validates s against the vocabulary. Matching is exact.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusRank[st]; !ok {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

// Next returns the status that follows s and false for the terminal status.
func (s Status) Next() (Status, bool) {
	r, ok := statusRank[s]
	if !ok || r == len(statusRank)-1 {
		return "", false
	}
	return Statuses()[r+1], true
}

// Delivery tracks the fulfilment stage of a single order.
type Delivery struct {
	ID        string
	OrderID   string
	UserID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists deliveries. At most one delivery may exist per order.
type Repository interface {
	// CreateIfAbsent stores d unless a delivery for d.OrderID exists. It
	// returns the stored record and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, d *Delivery) (*Delivery, bool, error)
	// Get returns ErrNotFound when no delivery exists for orderID.
	Get(ctx context.Context, orderID string) (*Delivery, error)
	// UpdateStatus sets the status when the current one is in from, or
	// unconditionally when from is empty. It returns ErrNotFound when the
	// delivery is missing and ErrInvalidTransition when from did not match.
	UpdateStatus(ctx context.Context, orderID string, to Status, from []Status, at time.Time) (*Delivery, error)
	List(ctx context.Context) ([]Delivery, error)
	ListByUser(ctx context.Context, userID string) ([]Delivery, error)
}
