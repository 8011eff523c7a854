package catalog

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickcart/internal/domain/product"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "p001":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"product_id":"p001","name":"Milk","description":"Fresh dairy milk","price":50,"category":"Dairy","image_url":"milk.jpg","available":true}`))
		case "boom":
			http.Error(w, `{"code":500,"message":"internal error"}`, http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("GET /slow/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetByID(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL+"/", time.Second)

	p, err := c.GetByID(t.Context(), "p001")
	require.NoError(t, err)
	assert.Equal(t, "p001", p.ID)
	assert.Equal(t, "Milk", p.Name)
	assert.True(t, decimal.NewFromInt(50).Equal(p.Price))
	assert.True(t, p.Available)

	_, err = c.GetByID(t.Context(), "nope")
	require.ErrorIs(t, err, product.ErrNotFound)

	_, err = c.GetByID(t.Context(), "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, product.ErrNotFound)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Timeout(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL+"/slow", 50*time.Millisecond)

	_, err := c.GetByID(t.Context(), "p001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, product.ErrNotFound)
}
