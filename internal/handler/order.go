package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/quickcart/internal/domain/order"
)

// OrderHandler serves order placement and history.
type OrderHandler struct {
	orders *order.Service
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Routes registers the order endpoints on r.
func (h *OrderHandler) Routes(r chi.Router) {
	r.Post("/order/create", h.placeOrder)
	r.Get("/order/id/{order_id}", h.getOrder)
	r.Get("/order/{user_id}", h.listOrders)
}

type placeOrderRequest struct {
	UserID string `json:"user_id"`
}

type deliveryOutcomeResponse struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type placeOrderResponse struct {
	Message     string                  `json:"message"`
	OrderID     string                  `json:"order_id"`
	TotalAmount money                   `json:"total_amount"`
	CreatedAt   time.Time               `json:"created_at"`
	Delivery    deliveryOutcomeResponse `json:"delivery"`
	CartCleared bool                    `json:"cart_cleared"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     money  `json:"price"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	OrderID     string              `json:"order_id"`
	UserID      string              `json:"user_id"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount money               `json:"total_amount"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toOrderResponse(o order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.UnitPrice),
			Quantity:  it.Quantity,
		}
	}
	return orderResponse{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: money(o.TotalAmount),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	}
}

func (h *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := resolveUserID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.orders.PlaceOrder(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, placeOrderResponse{
		Message:     "Order placed successfully",
		OrderID:     p.Order.ID,
		TotalAmount: money(p.Order.TotalAmount),
		CreatedAt:   p.Order.CreatedAt,
		Delivery: deliveryOutcomeResponse{
			Status:     string(p.Delivery.Status),
			DeliveryID: p.Delivery.DeliveryID,
			Error:      p.Delivery.Error,
		},
		CartCleared: p.CartCleared,
	})
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.GetOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sub, ok := subjectFromContext(r.Context()); ok && sub != o.UserID {
		// Do not reveal other users' orders.
		writeError(w, r, order.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*o))
}
