package handler

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/quickcart/internal/domain/user"
)

// UserHandler serves registration, login and the current user.
type UserHandler struct {
	users *user.Service
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *user.Service) *UserHandler {
	return &UserHandler{users: users}
}

// Routes registers the auth endpoints on r.
func (h *UserHandler) Routes(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Get("/auth/me", h.me)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case req.Name == "":
		writeError(w, r, badRequest("name is required"))
		return
	case req.Password == "":
		writeError(w, r, badRequest("password is required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, badRequest("invalid email"))
		return
	}

	u, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errUnauthorized)
		return
	}
	u, err := h.users.Authenticate(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}
