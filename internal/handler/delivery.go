package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/quickcart/internal/domain/delivery"
)

// DeliveryHandler serves delivery tracking.
type DeliveryHandler struct {
	deliveries *delivery.Service
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(deliveries *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

// InternalRoutes registers endpoints called by other services.
func (h *DeliveryHandler) InternalRoutes(r chi.Router) {
	r.Post("/delivery/create", h.create)
}

// Routes registers the user-facing delivery endpoints on r.
func (h *DeliveryHandler) Routes(r chi.Router) {
	r.Get("/deliveries", h.list)
	r.Get("/delivery/user/{user_id}", h.listByUser)
	r.Get("/delivery/{order_id}/status", h.getStatus)
	r.Post("/delivery/{order_id}/update-status", h.updateStatus)
}

type createDeliveryRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type deliveryResponse struct {
	DeliveryID string    `json:"delivery_id"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type deliveryStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func toDeliveryResponse(d delivery.Delivery) deliveryResponse {
	return deliveryResponse{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		UserID:     d.UserID,
		Status:     string(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func toDeliveryResponses(list []delivery.Delivery) []deliveryResponse {
	out := make([]deliveryResponse, len(list))
	for i, d := range list {
		out[i] = toDeliveryResponse(d)
	}
	return out
}

func (h *DeliveryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OrderID == "" || req.UserID == "" {
		writeError(w, r, badRequest("order_id and user_id are required"))
		return
	}

	d, created, err := h.deliveries.Create(r.Context(), req.OrderID, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toDeliveryResponse(*d))
}

// ownedDelivery returns the delivery of orderID. Deliveries of other users
// are reported as missing when the request carries a token.
func (h *DeliveryHandler) ownedDelivery(r *http.Request, orderID string) (*delivery.Delivery, error) {
	d, err := h.deliveries.GetStatus(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if sub, ok := subjectFromContext(r.Context()); ok && sub != d.UserID {
		return nil, delivery.ErrNotFound
	}
	return d, nil
}

func (h *DeliveryHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	d, err := h.ownedDelivery(r, chi.URLParam(r, "order_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryStatusResponse{OrderID: d.OrderID, Status: string(d.Status)})
}

func (h *DeliveryHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if _, err := h.ownedDelivery(r, orderID); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.deliveries.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryStatusResponse{OrderID: d.OrderID, Status: string(d.Status)})
}

// list returns every delivery, or only the caller's when a token is present.
func (h *DeliveryHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		list []delivery.Delivery
		err  error
	)
	if sub, ok := subjectFromContext(r.Context()); ok {
		list, err = h.deliveries.ListByUser(r.Context(), sub)
	} else {
		list, err = h.deliveries.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponses(list))
}

func (h *DeliveryHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.deliveries.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponses(list))
}
