package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/delivery"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/product"
	"github.com/xenking/quickcart/internal/domain/user"
	"github.com/xenking/quickcart/internal/storage/memory"
)

var testProducts = []product.Product{
	{ID: "p001", Name: "Milk", Description: "1L", Price: decimal.NewFromInt(50), Category: "Dairy", ImageURL: "milk.png", Available: true},
	{ID: "p002", Name: "Bread", Price: decimal.RequireFromString("30.50"), Category: "Bakery", ImageURL: "https://cdn.example/bread.png", Available: true},
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, string, string) (string, error) {
	return "", errors.New("delivery service unavailable")
}

type testEnv struct {
	router     chi.Router
	tokens     *user.TokenIssuer
	deliveries *delivery.Service
}

type envOptions struct {
	authRequired bool
	notifier     order.DeliveryNotifier
	strict       bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	products := memory.NewProducts(testProducts...)
	carts := memory.NewCarts()
	deliveries := delivery.NewService(memory.NewDeliveries(), delivery.WithStrictTransitions(opts.strict))
	tokens := user.NewTokenIssuer([]byte("test-secret"), time.Hour)
	users := user.NewService(memory.NewUsers(), tokens, "1234", user.WithBcryptCost(bcrypt.MinCost))

	var notifier order.DeliveryNotifier = deliveries
	if opts.notifier != nil {
		notifier = opts.notifier
	}
	orders, err := order.NewService(carts, memory.NewOrders(), notifier, nil)
	require.NoError(t, err)

	sec := NewSecurityHandler(tokens, opts.authRequired)
	deliveryHandler := NewDeliveryHandler(deliveries)

	r := chi.NewRouter()
	NewCatalogHandler(CatalogConfig{ImageBaseURL: "https://img.example/"}, products).Routes(r)
	NewUserHandler(users).Routes(r)
	deliveryHandler.InternalRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(sec.Middleware)
		NewCartHandler(cart.NewService(products, carts)).Routes(r)
		NewOrderHandler(orders).Routes(r)
		deliveryHandler.Routes(r)
	})

	return &testEnv{router: r, tokens: tokens, deliveries: deliveries}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, status, body.Code)
	assert.NotEmpty(t, body.Message)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	t.Run("List", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/products", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var list []map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
		require.Len(t, list, 2)
		assert.Equal(t, "p001", list[0]["product_id"])
		assert.Equal(t, float64(50), list[0]["price"])
		assert.Equal(t, "https://img.example/milk.png", list[0]["image_url"])
		assert.Equal(t, "https://cdn.example/bread.png", list[1]["image_url"])
	})
	t.Run("Get", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/products/p002", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"price":30.5`)
	})
	t.Run("NotFound", func(t *testing.T) {
		assertError(t, env.do(t, http.MethodGet, "/products/nope", nil, ""), http.StatusNotFound)
	})
	t.Run("Bulk", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/products/bulk", bulkRequest{ProductIDs: []string{"p002", "missing"}}, "")
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]map[string]any](t, w)
		require.Len(t, list, 1)
		assert.Equal(t, "p002", list[0]["product_id"])
	})
	t.Run("BulkMissingIDs", func(t *testing.T) {
		assertError(t, env.do(t, http.MethodPost, "/products/bulk", map[string]any{}, ""), http.StatusBadRequest)
	})
	t.Run("Categories", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/categories", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []categoryResponse{{Name: "Bakery"}, {Name: "Dairy"}}, decode[[]categoryResponse](t, w))
	})
}

func TestCartAndOrderFlow(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/cart/add", cartItemRequest{ProductID: "p001", Quantity: 2, UserID: "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Item added to cart", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodPost, "/cart/add", cartItemRequest{ProductID: "p002", Quantity: 1, UserID: "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/cart/remove", cartItemRequest{ProductID: "p001", Quantity: 1, UserID: "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cart updated successfully", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodGet, "/cart/u1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","items":[
		{"product_id":"p001","name":"Milk","price":50,"quantity":1},
		{"product_id":"p002","name":"Bread","price":30.5,"quantity":1}
	]}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/order/create", placeOrderRequest{UserID: "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	placed := decode[map[string]any](t, w)
	assert.Equal(t, "Order placed successfully", placed["message"])
	assert.Equal(t, 80.5, placed["total_amount"])
	assert.Equal(t, true, placed["cart_cleared"])
	outcome := placed["delivery"].(map[string]any)
	assert.Equal(t, "notified", outcome["status"])
	assert.NotEmpty(t, outcome["delivery_id"])
	orderID := placed["order_id"].(string)

	d, err := env.deliveries.GetStatus(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusCreated, d.Status)

	w = env.do(t, http.MethodGet, "/cart/u1", nil, "")
	assert.JSONEq(t, `{"user_id":"u1","items":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/order/u1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[[]map[string]any](t, w)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0]["order_id"])
	assert.Equal(t, "PLACED", orders[0]["status"])

	w = env.do(t, http.MethodGet, "/order/id/"+orderID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", decode[map[string]any](t, w)["user_id"])

	// Cart is empty again.
	assertError(t, env.do(t, http.MethodPost, "/order/create", placeOrderRequest{UserID: "u1"}, ""), http.StatusBadRequest)
}

func TestCart_Errors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name string
		path string
		body any
	}{
		{"UnknownProduct", "/cart/add", cartItemRequest{ProductID: "nope", Quantity: 1, UserID: "u1"}},
		{"ZeroQuantity", "/cart/add", cartItemRequest{ProductID: "p001", Quantity: 0, UserID: "u1"}},
		{"MissingUser", "/cart/add", cartItemRequest{ProductID: "p001", Quantity: 1}},
		{"MissingProduct", "/cart/add", cartItemRequest{Quantity: 1, UserID: "u1"}},
		{"RemoveWithoutCart", "/cart/remove", cartItemRequest{ProductID: "p001", Quantity: 1, UserID: "ghost"}},
		{"MalformedBody", "/cart/add", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, env.do(t, http.MethodPost, tt.path, tt.body, ""), http.StatusBadRequest)
		})
	}
}

func TestCart_Empty(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/cart/nobody", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"nobody","items":[]}`, w.Body.String())
}

func TestOrder_DeliveryFailureStillPlaces(t *testing.T) {
	env := newTestEnv(t, envOptions{notifier: failingNotifier{}})

	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/cart/add", cartItemRequest{ProductID: "p001", Quantity: 1, UserID: "u1"}, "").Code)

	w := env.do(t, http.MethodPost, "/order/create", placeOrderRequest{UserID: "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	outcome := decode[placeOrderResponseJSON](t, w).Delivery
	assert.Equal(t, "failed", outcome.Status)
	assert.Contains(t, outcome.Error, "unavailable")
	assert.Empty(t, outcome.DeliveryID)
}

// placeOrderResponseJSON mirrors placeOrderResponse for decoding.
type placeOrderResponseJSON struct {
	OrderID  string                  `json:"order_id"`
	Delivery deliveryOutcomeResponse `json:"delivery"`
}

func TestOrder_NotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	assertError(t, env.do(t, http.MethodGet, "/order/id/missing", nil, ""), http.StatusNotFound)
}

func TestDelivery(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o1", UserID: "u1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[deliveryResponse](t, w)
	assert.Equal(t, "CREATED", created.Status)

	w = env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o1", UserID: "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.DeliveryID, decode[deliveryResponse](t, w).DeliveryID)

	assertError(t, env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o2"}, ""), http.StatusBadRequest)

	w = env.do(t, http.MethodPost, "/delivery/o1/update-status", updateStatusRequest{Status: "OUT_FOR_DELIVERY"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, deliveryStatusResponse{OrderID: "o1", Status: "OUT_FOR_DELIVERY"}, decode[deliveryStatusResponse](t, w))

	w = env.do(t, http.MethodGet, "/delivery/o1/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OUT_FOR_DELIVERY", decode[deliveryStatusResponse](t, w).Status)

	assertError(t, env.do(t, http.MethodPost, "/delivery/o1/update-status", updateStatusRequest{Status: "shipped"}, ""), http.StatusBadRequest)
	assertError(t, env.do(t, http.MethodPost, "/delivery/missing/update-status", updateStatusRequest{Status: "PACKED"}, ""), http.StatusNotFound)
	assertError(t, env.do(t, http.MethodPost, "/delivery/missing/update-status", updateStatusRequest{Status: "SHIPPED"}, ""), http.StatusNotFound)
	assertError(t, env.do(t, http.MethodGet, "/delivery/missing/status", nil, ""), http.StatusNotFound)

	w = env.do(t, http.MethodGet, "/deliveries", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]deliveryResponse](t, w), 1)

	w = env.do(t, http.MethodGet, "/delivery/user/u1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]deliveryResponse](t, w), 1)

	w = env.do(t, http.MethodGet, "/delivery/user/u2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]deliveryResponse](t, w))
}

func TestDelivery_StrictTransitions(t *testing.T) {
	env := newTestEnv(t, envOptions{strict: true})

	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o1", UserID: "u1"}, "").Code)

	assertError(t, env.do(t, http.MethodPost, "/delivery/o1/update-status", updateStatusRequest{Status: "DELIVERED"}, ""), http.StatusConflict)
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/delivery/o1/update-status", updateStatusRequest{Status: "PLACED"}, "").Code)
}

func TestDelivery_Ownership(t *testing.T) {
	env := newTestEnv(t, envOptions{authRequired: true})

	alice, err := env.tokens.Issue("alice")
	require.NoError(t, err)
	mallory, err := env.tokens.Issue("mallory")
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o1", UserID: "alice"}, "").Code)
	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o2", UserID: "mallory"}, "").Code)

	t.Run("StatusHidden", func(t *testing.T) {
		assertError(t, env.do(t, http.MethodGet, "/delivery/o1/status", nil, mallory), http.StatusNotFound)
	})
	t.Run("UpdateRejected", func(t *testing.T) {
		assertError(t, env.do(t, http.MethodPost, "/delivery/o1/update-status",
			updateStatusRequest{Status: "DELIVERED"}, mallory), http.StatusNotFound)

		d, err := env.deliveries.GetStatus(context.Background(), "o1")
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusCreated, d.Status)
	})
	t.Run("OwnerUpdates", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/delivery/o1/update-status", updateStatusRequest{Status: "PACKED"}, alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "PACKED", decode[deliveryStatusResponse](t, w).Status)
	})
	t.Run("ListScopedToSubject", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/deliveries", nil, mallory)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]deliveryResponse](t, w)
		require.Len(t, list, 1)
		assert.Equal(t, "o2", list[0].OrderID)
	})
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, envOptions{authRequired: true})

	w := env.do(t, http.MethodPost, "/auth/register", registerRequest{Name: "Ann", Email: "ann@example.com", Password: "pw", OTP: "1234"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ann@example.com", decode[userResponse](t, w).Email)

	assertError(t, env.do(t, http.MethodPost, "/auth/register",
		registerRequest{Name: "Ann", Email: "ann@example.com", Password: "pw", OTP: "1234"}, ""), http.StatusBadRequest)
	assertError(t, env.do(t, http.MethodPost, "/auth/register",
		registerRequest{Name: "Bob", Email: "bob@example.com", Password: "pw", OTP: "0000"}, ""), http.StatusBadRequest)
	assertError(t, env.do(t, http.MethodPost, "/auth/register",
		registerRequest{Name: "Bob", Email: "not-an-email", Password: "pw", OTP: "1234"}, ""), http.StatusBadRequest)
	assertError(t, env.do(t, http.MethodPost, "/auth/register",
		registerRequest{Name: "Bob", Email: "bob@example.com", Password: strings.Repeat("p", 80), OTP: "1234"}, ""), http.StatusBadRequest)
	assertError(t, env.do(t, http.MethodPost, "/auth/login",
		loginRequest{Email: "ann@example.com", Password: "wrong"}, ""), http.StatusUnauthorized)

	w = env.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "ann@example.com", Password: "pw"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	tok := decode[tokenResponse](t, w)
	assert.Equal(t, "bearer", tok.TokenType)

	w = env.do(t, http.MethodGet, "/auth/me", nil, tok.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ann", decode[userResponse](t, w).Name)
	assertError(t, env.do(t, http.MethodGet, "/auth/me", nil, ""), http.StatusUnauthorized)

	sub, err := env.tokens.Verify(tok.AccessToken)
	require.NoError(t, err)

	t.Run("TokenRequired", func(t *testing.T) {
		assertError(t, env.do(t, http.MethodGet, "/cart/"+sub, nil, ""), http.StatusUnauthorized)
		assertError(t, env.do(t, http.MethodGet, "/cart/"+sub, nil, "garbage"), http.StatusUnauthorized)
	})
	t.Run("SubjectFillsUserID", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/cart/add", cartItemRequest{ProductID: "p001", Quantity: 1}, tok.AccessToken)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/cart/"+sub, nil, tok.AccessToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[cartResponse](t, w).Items, 1)
	})
	t.Run("MismatchForbidden", func(t *testing.T) {
		assertError(t, env.do(t, http.MethodGet, "/cart/someone-else", nil, tok.AccessToken), http.StatusForbidden)
	})
	t.Run("InternalCreateOpen", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/delivery/create", createDeliveryRequest{OrderID: "o9", UserID: sub}, "")
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errors.Wrap(cart.ErrProductNotFound, "add"), http.StatusBadRequest},
		{order.ErrEmptyCart, http.StatusBadRequest},
		{errors.Wrap(delivery.ErrNotFound, "get"), http.StatusNotFound},
		{delivery.ErrInvalidTransition, http.StatusConflict},
		{user.ErrInvalidToken, http.StatusUnauthorized},
		{badRequest("x"), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, msg := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.NotEmpty(t, msg)
	}

	_, msg := mapError(errors.New("secret details"))
	assert.Equal(t, "internal server error", msg)
}
