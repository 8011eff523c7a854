// Package delivery is an HTTP client for the delivery service.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client asks the delivery service to track new orders.
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

// Notify creates the delivery for orderID and returns its id. The delivery
// service answers 201 for a new record and 200 for an existing one, so a
// repeated call is safe.
func (c *Client) Notify(ctx context.Context, orderID, userID string) (string, error) {
	body, err := json.Marshal(struct {
		OrderID string `json:"order_id"`
		UserID  string `json:"user_id"`
	}{OrderID: orderID, UserID: userID})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/delivery/create", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "delivery request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("delivery service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out struct {
		DeliveryID string `json:"delivery_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode delivery response")
	}
	return out.DeliveryID, nil
}
