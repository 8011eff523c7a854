package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/quickcart/internal/domain/cart"
)

// CartHandler serves cart mutations and reads.
type CartHandler struct {
	carts *cart.Service
}

// NewCartHandler creates a CartHandler.
func NewCartHandler(carts *cart.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

// Routes registers the cart endpoints on r.
func (h *CartHandler) Routes(r chi.Router) {
	r.Post("/cart/add", h.addItem)
	r.Post("/cart/remove", h.removeItem)
	r.Get("/cart/{user_id}", h.getCart)
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"user_id"`
}

type cartItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     money  `json:"price"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	UserID string             `json:"user_id"`
	Items  []cartItemResponse `json:"items"`
}

func (h *CartHandler) decodeItem(r *http.Request) (cartItemRequest, error) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		return req, err
	}
	if req.ProductID == "" {
		return req, badRequest("product_id is required")
	}
	userID, err := resolveUserID(r.Context(), req.UserID)
	if err != nil {
		return req, err
	}
	req.UserID = userID
	return req, nil
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.AddItem(r.Context(), req.UserID, req.ProductID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "Item added to cart")
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.RemoveItem(r.Context(), req.UserID, req.ProductID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "Cart updated successfully")
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := cartResponse{
		UserID: userID,
		Items:  make([]cartItemResponse, len(c.Items)),
	}
	for i, it := range c.Items {
		resp.Items[i] = cartItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.UnitPrice),
			Quantity:  it.Quantity,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
