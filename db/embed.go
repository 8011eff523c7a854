// Package db provides the embedded database schema and seed data.
package db

import (
	_ "embed"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickcart/internal/domain/product"
)

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the default grocery catalog as a JSON array.
//
//go:embed seed/products.json
var SeedProducts []byte

type seedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Available   bool            `json:"available"`
}

// ParseProducts decodes a JSON array of products in the seed file layout.
func ParseProducts(data []byte) ([]product.Product, error) {
	var raw []seedProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	out := make([]product.Product, len(raw))
	for i, p := range raw {
		if p.ID == "" {
			return nil, errors.Errorf("product %d: missing id", i)
		}
		out[i] = product.Product(p)
	}
	return out, nil
}

// Products returns the embedded seed catalog.
func Products() ([]product.Product, error) {
	return ParseProducts(SeedProducts)
}
