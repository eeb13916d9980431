package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopsmart/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	if customerID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer id")
		return
	}

	cart, err := h.service.GetByCustomer(r.Context(), customerID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get cart", "customer_id", customerID)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	if customerID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer id")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.AddItem(r.Context(), customerID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err, "failed to add item", "customer_id", customerID, "product_id", req.ProductID)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	productID := r.PathValue("productId")
	if customerID == "" || productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer or product id")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.UpdateQuantity(r.Context(), customerID, productID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err, "failed to update quantity", "customer_id", customerID, "product_id", productID)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	productID := r.PathValue("productId")
	if customerID == "" || productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer or product id")
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), customerID, productID)
	if err != nil {
		h.writeServiceError(w, err, "failed to remove item", "customer_id", customerID, "product_id", productID)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	if customerID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer id")
		return
	}

	if err := h.service.Clear(r.Context(), customerID); err != nil {
		h.writeServiceError(w, err, "failed to clear cart", "customer_id", customerID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	if customerID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer id")
		return
	}

	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	cart, err := h.service.ApplyCoupon(r.Context(), customerID, req.Code)
	if err != nil {
		h.writeServiceError(w, err, "failed to apply coupon", "customer_id", customerID, "code", req.Code)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	if customerID == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer id")
		return
	}

	cart, err := h.service.RemoveCoupon(r.Context(), customerID)
	if err != nil {
		h.writeServiceError(w, err, "failed to remove coupon", "customer_id", customerID)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
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
