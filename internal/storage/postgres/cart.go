package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/quickcart/internal/domain/cart"
)

const (
	getCartSQL = `SELECT updated_at FROM carts WHERE user_id = $1`

	getCartItemsSQL = `SELECT product_id, name, price, quantity
	FROM cart_items WHERE user_id = $1 ORDER BY position`

	touchCartSQL = `INSERT INTO carts (user_id, updated_at) VALUES ($1, now())
	ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`

	// Name and price are snapshotted on first insert only.
	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, name, price, quantity)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	decrementCartItemSQL = `UPDATE cart_items SET quantity = quantity - $3
	WHERE user_id = $1 AND product_id = $2 AND quantity > $3`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	cartExistsSQL = `SELECT EXISTS (SELECT 1 FROM carts WHERE user_id = $1)`

	bumpCartSQL = `UPDATE carts SET updated_at = now() WHERE user_id = $1`

	clearCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Carts and
// their lines live in separate tables keyed by user id.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the cart with its lines in insertion order.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, getCartSQL, userID).Scan(&c.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrCartNotFound
			}
			return fmt.Errorf("getting cart %q: %w", userID, err)
		}

		rows, err := tx.Query(ctx, getCartItemsSQL, userID)
		if err != nil {
			return fmt.Errorf("getting cart items %q: %w", userID, err)
		}
		items, err := pgx.CollectRows(rows, scanLineItem)
		if err != nil {
			return fmt.Errorf("scanning cart items %q: %w", userID, err)
		}
		c.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem upserts the cart row and the line in one transaction. Both
// statements are ON CONFLICT upserts, so concurrent adds for the same user
// and product serialize on the row locks instead of racing.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item cart.LineItem) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, touchCartSQL, userID); err != nil {
			return fmt.Errorf("upserting cart: %w", err)
		}
		if _, err := tx.Exec(ctx, addCartItemSQL,
			userID, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
		); err != nil {
			return fmt.Errorf("upserting cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("adding %q to cart %q: %w", item.ProductID, userID, err)
	}
	return nil
}

// RemoveItem decrements or deletes the line for productID.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string, quantity int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, decrementCartItemSQL, userID, productID, quantity)
		if err != nil {
			return fmt.Errorf("decrementing cart item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			tag, err = tx.Exec(ctx, deleteCartItemSQL, userID, productID)
			if err != nil {
				return fmt.Errorf("deleting cart item: %w", err)
			}
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, cartExistsSQL, userID).Scan(&exists); err != nil {
				return fmt.Errorf("checking cart: %w", err)
			}
			if !exists {
				return cart.ErrCartNotFound
			}
			return cart.ErrItemNotInCart
		}
		if _, err := tx.Exec(ctx, bumpCartSQL, userID); err != nil {
			return fmt.Errorf("touching cart: %w", err)
		}
		return nil
	})
}

// Clear deletes every line of the cart and keeps the cart row.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, clearCartItemsSQL, userID); err != nil {
			return fmt.Errorf("clearing cart %q: %w", userID, err)
		}
		if _, err := tx.Exec(ctx, bumpCartSQL, userID); err != nil {
			return fmt.Errorf("touching cart %q: %w", userID, err)
		}
		return nil
	})
}

func scanLineItem(row pgx.CollectableRow) (cart.LineItem, error) {
	var li cart.LineItem
	err := row.Scan(&li.ProductID, &li.Name, &li.UnitPrice, &li.Quantity)
	return li, err
}
