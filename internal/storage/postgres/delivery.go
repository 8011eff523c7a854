package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/quickcart/internal/domain/delivery"
)

const (
	deliveryColumns = `id, order_id, user_id, status, created_at, updated_at`

	insertDeliverySQL = `INSERT INTO deliveries (` + deliveryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (order_id) DO NOTHING
	RETURNING ` + deliveryColumns

	getDeliverySQL = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE order_id = $1`

	// A NULL $4 skips the current-status guard.
	updateDeliveryStatusSQL = `UPDATE deliveries SET status = $2, updated_at = $3
	WHERE order_id = $1 AND ($4::text[] IS NULL OR status = ANY($4))
	RETURNING ` + deliveryColumns

	listDeliveriesSQL = `SELECT ` + deliveryColumns + ` FROM deliveries ORDER BY created_at, id`

	listDeliveriesByUserSQL = `SELECT ` + deliveryColumns + ` FROM deliveries
	WHERE user_id = $1 ORDER BY created_at, id`
)

var _ delivery.Repository = (*DeliveryRepository)(nil)

// DeliveryRepository implements delivery.Repository backed by PostgreSQL.
// The unique order_id constraint guarantees one delivery per order.
type DeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepository returns a DeliveryRepository that uses the given pool.
func NewDeliveryRepository(pool *pgxpool.Pool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

// CreateIfAbsent inserts d unless the order already has a delivery, in which
// case the stored record is returned.
func (r *DeliveryRepository) CreateIfAbsent(ctx context.Context, d *delivery.Delivery) (*delivery.Delivery, bool, error) {
	rows, err := r.pool.Query(ctx, insertDeliverySQL,
		d.ID, d.OrderID, d.UserID, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting delivery for %q: %w", d.OrderID, err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, scanDelivery)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("inserting delivery for %q: %w", d.OrderID, err)
	}

	existing, err := r.Get(ctx, d.OrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get returns the delivery of orderID.
func (r *DeliveryRepository) Get(ctx context.Context, orderID string) (*delivery.Delivery, error) {
	rows, err := r.pool.Query(ctx, getDeliverySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting delivery %q: %w", orderID, err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDelivery)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrNotFound
		}
		return nil, fmt.Errorf("getting delivery %q: %w", orderID, err)
	}
	return &d, nil
}

// UpdateStatus sets the status in a single guarded UPDATE.
func (r *DeliveryRepository) UpdateStatus(
	ctx context.Context,
	orderID string,
	to delivery.Status,
	from []delivery.Status,
	at time.Time,
) (*delivery.Delivery, error) {
	var guard []string
	if len(from) > 0 {
		guard = make([]string, len(from))
		for i, st := range from {
			guard[i] = string(st)
		}
	}

	rows, err := r.pool.Query(ctx, updateDeliveryStatusSQL, orderID, string(to), at, guard)
	if err != nil {
		return nil, fmt.Errorf("updating delivery %q: %w", orderID, err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDelivery)
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating delivery %q: %w", orderID, err)
	}

	// Nothing matched: either the delivery is missing or the guard failed.
	if _, err := r.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return nil, delivery.ErrInvalidTransition
}

// List returns all deliveries, oldest first.
func (r *DeliveryRepository) List(ctx context.Context) ([]delivery.Delivery, error) {
	rows, err := r.pool.Query(ctx, listDeliveriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries: %w", err)
	}
	return pgx.CollectRows(rows, scanDelivery)
}

// ListByUser returns the deliveries of userID, oldest first.
func (r *DeliveryRepository) ListByUser(ctx context.Context, userID string) ([]delivery.Delivery, error) {
	rows, err := r.pool.Query(ctx, listDeliveriesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanDelivery)
}

func scanDelivery(row pgx.CollectableRow) (delivery.Delivery, error) {
	var (
		d      delivery.Delivery
		status string
	)
	err := row.Scan(&d.ID, &d.OrderID, &d.UserID, &status, &d.CreatedAt, &d.UpdatedAt)
	d.Status = delivery.Status(status)
	return d, err
}
