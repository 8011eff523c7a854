// Package catalog is an HTTP client for the catalog service.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/quickcart/internal/domain/product"
)

// Client fetches products from the catalog service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. Every request is bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type productDTO struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Available   bool            `json:"available"`
}

func (d productDTO) product() product.Product {
	return product.Product{
		ID:          d.ProductID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Category:    d.Category,
		ImageURL:    d.ImageURL,
		Available:   d.Available,
	}
}

// GetByID returns the product or product.ErrNotFound on 404.
func (c *Client) GetByID(ctx context.Context, id string) (*product.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	var dto productDTO
	if err := c.do(req, &dto); err != nil {
		return nil, err
	}
	p := dto.product()
	return &p, nil
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "catalog request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return product.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("catalog returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode catalog response")
	}
	return nil
}
