package order

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopsmart/internal/domain"
	"github.com/joao-fontenele/shopsmart/internal/messaging"
)

type Handler struct {
	service  *Service
	requests *messaging.Producer
	logger   *slog.Logger
}

// NewHandler builds the orders HTTP handler. requests may be nil when no
// broker is configured; the async endpoint then responds 503.
func NewHandler(service *Service, requests *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		requests: requests,
		logger:   logger,
	}
}

type placeOrderRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		h.writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), req.CustomerID)
	if err != nil {
		h.writeServiceError(w, err, "failed to place order", "customer_id", req.CustomerID)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

// HandleRequest accepts an order asynchronously: it publishes an
// order.requested event keyed by customer id and returns 202. The worker
// picks the event up and places the order from the customer's cart.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil {
		h.writeError(w, http.StatusServiceUnavailable, "async ordering is not available")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		h.writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	event := domain.OrderRequestedEvent{
		CustomerID:  req.CustomerID,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.requests.Publish(r.Context(), req.CustomerID, event); err != nil {
		h.logger.Error("failed to publish order request", "error", err, "customer_id", req.CustomerID)
		h.writeError(w, http.StatusServiceUnavailable, "failed to accept order request")
		return
	}

	h.logger.Info("order requested", "customer_id", req.CustomerID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get order", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		orders []domain.Order
		err    error
	)
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		orders, err = h.service.GetByCustomer(r.Context(), customerID)
	} else {
		orders, err = h.service.GetAll(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, err, "failed to update order status", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.service.CancelOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to cancel order", "order_id", id)
		return
	}

	order, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get cancelled order", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete order", "order_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.service.ProcessPayment(r.Context(), id, req.Method, req.Amount)
	if err != nil {
		h.writeServiceError(w, err, "failed to process payment", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
