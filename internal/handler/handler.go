// Package handler exposes the shop services over HTTP with chi routers.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/delivery"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/product"
	"github.com/xenking/quickcart/internal/domain/user"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// messageResponse acknowledges mutations that return no resource.
type messageResponse struct {
	Message string `json:"message"`
}

// money renders a decimal as a bare JSON number.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).String()), nil
}

// requestError is a request decoding or validation failure.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// writeError maps err to a status code and writes the error body. Unknown
// errors are logged and reported as 500 without their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// errorStatuses maps domain sentinels to response codes.
var errorStatuses = []struct {
	err    error
	status int
}{
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{cart.ErrProductNotFound, http.StatusBadRequest},
	{cart.ErrCartNotFound, http.StatusBadRequest},
	{cart.ErrItemNotInCart, http.StatusBadRequest},
	{order.ErrEmptyCart, http.StatusBadRequest},
	{order.ErrOrderNotFound, http.StatusNotFound},
	{product.ErrNotFound, http.StatusNotFound},
	{delivery.ErrInvalidStatus, http.StatusBadRequest},
	{delivery.ErrNotFound, http.StatusNotFound},
	{delivery.ErrInvalidTransition, http.StatusConflict},
	{user.ErrInvalidOTP, http.StatusBadRequest},
	{user.ErrDuplicateEmail, http.StatusBadRequest},
	{user.ErrPasswordTooLong, http.StatusBadRequest},
	{user.ErrInvalidCredentials, http.StatusUnauthorized},
	{user.ErrInvalidToken, http.StatusUnauthorized},
	{errUnauthorized, http.StatusUnauthorized},
	{errForbidden, http.StatusForbidden},
}

func mapError(err error) (int, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, reqErr.msg
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
