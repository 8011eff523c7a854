package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service manages delivery records.
type Service struct {
	repo   Repository
	strict bool
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStrictTransitions makes UpdateStatus accept only a single step forward
// or a same-status no-op.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a delivery Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create returns the delivery for orderID, creating it with status CREATED
// when none exists. The bool reports whether this call created it.
func (s *Service) Create(ctx context.Context, orderID, userID string) (*Delivery, bool, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	d, created, err := s.repo.CreateIfAbsent(ctx, &Delivery{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		UserID:    userID,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "create delivery")
	}
	if created {
		zctx.From(ctx).Info("Delivery created",
			zap.String("order_id", orderID),
			zap.String("delivery_id", d.ID),
		)
	}
	return d, created, nil
}

// Notify creates the delivery for orderID in process and returns its id. It
// lets the order workflow run against a local tracker.
func (s *Service) Notify(ctx context.Context, orderID, userID string) (string, error) {
	d, _, err := s.Create(ctx, orderID, userID)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// GetStatus returns the delivery for orderID or ErrNotFound.
func (s *Service) GetStatus(ctx context.Context, orderID string) (*Delivery, error) {
	d, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "get delivery")
	}
	return d, nil
}

// UpdateStatus moves the delivery of orderID to status. A missing delivery
// is reported before an invalid status.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (*Delivery, error) {
	if _, err := s.GetStatus(ctx, orderID); err != nil {
		return nil, err
	}
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var from []Status
	if s.strict {
		from = allowedFrom(to)
	}

	d, err := s.repo.UpdateStatus(ctx, orderID, to, from, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, errors.Wrap(err, "update delivery status")
	}

	zctx.From(ctx).Info("Delivery status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(to)),
	)
	return d, nil
}

// List returns every delivery.
func (s *Service) List(ctx context.Context) ([]Delivery, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list deliveries")
	}
	return list, nil
}

// ListByUser returns the deliveries of userID.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Delivery, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user deliveries")
	}
	return list, nil
}

// allowedFrom returns the statuses from which to may be entered under the
// forward-only table.
func allowedFrom(to Status) []Status {
	from := []Status{to}
	for _, st := range Statuses() {
		if next, ok := st.Next(); ok && next == to {
			from = append(from, st)
		}
	}
	return from
}
