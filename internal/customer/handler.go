package customer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopsmart/internal/domain"
)

type Handler struct {
	repo   *CustomerRepository
	logger *slog.Logger
}

func NewHandler(repo *CustomerRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type createCustomerRequest struct {
	Email   string          `json:"email"`
	Roles   []string        `json:"roles"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	customer := &domain.Customer{
		Email:   req.Email,
		Roles:   req.Roles,
		Profile: req.Profile,
	}

	if err := h.repo.Create(r.Context(), customer); err != nil {
		h.logger.Error("failed to create customer", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("customer created", "customer_id", customer.ID)
	h.writeJSON(w, http.StatusCreated, customer)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer id")
		return
	}

	customer, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		h.logger.Error("failed to get customer", "error", err, "customer_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
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
