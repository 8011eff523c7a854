package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/delivery"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/product"
	"github.com/xenking/quickcart/internal/domain/user"
)

func TestProducts(t *testing.T) {
	ctx := context.Background()
	repo := NewProducts(
		product.Product{ID: "p2", Name: "Bread", Category: "Bakery"},
		product.Product{ID: "p1", Name: "Milk", Category: "Dairy"},
		product.Product{ID: "p3", Name: "Eggs", Category: "Dairy"},
	)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p1", list[0].ID)

	_, err = repo.GetByID(ctx, "nope")
	require.ErrorIs(t, err, product.ErrNotFound)

	got, err := repo.GetByIDs(ctx, []string{"p3", "missing", "p1", "p3"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p3", got[1].ID)

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bakery", "Dairy"}, cats)

	require.NoError(t, repo.Upsert(ctx, product.Product{ID: "p1", Name: "Oat Milk"}))
	p, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Oat Milk", p.Name)
}

func TestCarts(t *testing.T) {
	ctx := context.Background()
	repo := NewCarts()

	_, err := repo.Get(ctx, "u1")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
	require.ErrorIs(t, repo.RemoveItem(ctx, "u1", "p1", 1), cart.ErrCartNotFound)

	require.NoError(t, repo.AddItem(ctx, "u1", cart.LineItem{ProductID: "p1", Name: "Milk", UnitPrice: decimal.NewFromInt(50), Quantity: 2}))
	require.NoError(t, repo.AddItem(ctx, "u1", cart.LineItem{ProductID: "p2", Name: "Bread", UnitPrice: decimal.NewFromInt(30), Quantity: 1}))
	require.NoError(t, repo.AddItem(ctx, "u1", cart.LineItem{ProductID: "p1", Name: "Other", UnitPrice: decimal.NewFromInt(1), Quantity: 3}))

	c, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, "Milk", c.Items[0].Name)

	// Returned carts are copies.
	c.Items[0].Quantity = 100
	again, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Items[0].Quantity)

	require.ErrorIs(t, repo.RemoveItem(ctx, "u1", "p9", 1), cart.ErrItemNotInCart)
	require.NoError(t, repo.RemoveItem(ctx, "u1", "p1", 4))
	require.NoError(t, repo.RemoveItem(ctx, "u1", "p2", 1))

	c, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, 1, c.Items[0].Quantity)

	require.NoError(t, repo.Clear(ctx, "u1"))
	c, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	require.NoError(t, repo.Clear(ctx, "ghost"))
	_, err = repo.Get(ctx, "ghost")
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestCarts_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	repo := NewCarts()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.AddItem(ctx, "u1", cart.LineItem{ProductID: "p1", Quantity: 1})
		}()
	}
	wg.Wait()

	c, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 50, c.Items[0].Quantity)
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewOrders()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	items := []order.Item{{ProductID: "p1", Quantity: 1}}
	require.NoError(t, repo.Create(ctx, &order.Order{ID: "b", UserID: "u1", Items: items, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &order.Order{ID: "a", UserID: "u1", Items: items, CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &order.Order{ID: "c", UserID: "u2", Items: items, CreatedAt: base}))

	// Mutating the caller's slice does not reach the stored order.
	items[0].Quantity = 99

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, 1, list[0].Items[0].Quantity)

	list, err = repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = repo.Get(ctx, "zzz")
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestDeliveries(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliveries()
	now := time.Now()

	d, created, err := repo.CreateIfAbsent(ctx, &delivery.Delivery{ID: "d1", OrderID: "o1", UserID: "u1", Status: delivery.StatusCreated, CreatedAt: now})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "d1", d.ID)

	d, created, err = repo.CreateIfAbsent(ctx, &delivery.Delivery{ID: "d2", OrderID: "o1", UserID: "u1", Status: delivery.StatusCreated, CreatedAt: now})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "d1", d.ID)

	_, err = repo.UpdateStatus(ctx, "o1", delivery.StatusPacked, []delivery.Status{delivery.StatusPlaced}, now)
	require.ErrorIs(t, err, delivery.ErrInvalidTransition)

	d, err = repo.UpdateStatus(ctx, "o1", delivery.StatusPacked, nil, now)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPacked, d.Status)

	_, err = repo.UpdateStatus(ctx, "o2", delivery.StatusPacked, nil, now)
	require.ErrorIs(t, err, delivery.ErrNotFound)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewUsers()

	require.NoError(t, repo.Create(ctx, &user.User{ID: "1", Email: "a@b.c"}))
	require.ErrorIs(t, repo.Create(ctx, &user.User{ID: "2", Email: "a@b.c"}), user.ErrDuplicateEmail)

	u, err := repo.GetByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)

	_, err = repo.GetByID(ctx, "2")
	require.ErrorIs(t, err, user.ErrNotFound)
}
