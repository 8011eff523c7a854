package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("user_id does not match token")
)

// TokenVerifier resolves a bearer token to its subject user id.
// user.TokenIssuer implements it.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type subjectKey struct{}

// subjectFromContext returns the authenticated user id, if any.
func subjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok && sub != ""
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SecurityHandler authenticates bearer tokens on cart, order and delivery
// routes.
type SecurityHandler struct {
	tokens   TokenVerifier
	required bool
}

// NewSecurityHandler creates a SecurityHandler. When required is false,
// requests without a token pass through unauthenticated, but a presented
// token must still be valid.
func NewSecurityHandler(tokens TokenVerifier, required bool) *SecurityHandler {
	return &SecurityHandler{
		tokens:   tokens,
		required: required,
	}
}

// Middleware stores the token subject in the request context.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			if s.required {
				writeError(w, r, errUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		sub, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))
	})
}

// resolveUserID reconciles a user id from the request with the token
// subject. A missing id is filled from the token; a mismatching one is
// rejected.
func resolveUserID(ctx context.Context, userID string) (string, error) {
	sub, ok := subjectFromContext(ctx)
	switch {
	case !ok && userID == "":
		return "", badRequest("user_id is required")
	case !ok:
		return userID, nil
	case userID == "":
		return sub, nil
	case userID != sub:
		return "", errForbidden
	default:
		return userID, nil
	}
}
