package db

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducts(t *testing.T) {
	products, err := Products()
	require.NoError(t, err)
	require.Len(t, products, 6)

	milk := products[0]
	assert.Equal(t, "p001", milk.ID)
	assert.Equal(t, "Milk", milk.Name)
	assert.True(t, decimal.NewFromInt(50).Equal(milk.Price))
	assert.True(t, milk.Available)
}

func TestParseProducts_MissingID(t *testing.T) {
	_, err := ParseProducts([]byte(`[{"name":"x","price":"1"}]`))
	require.Error(t, err)
}

func TestSchema(t *testing.T) {
	for _, table := range []string{"products", "carts", "cart_items", "orders", "deliveries", "users"} {
		assert.True(t, strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}
