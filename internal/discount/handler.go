package discount

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopsmart/internal/domain"
)

type Handler struct {
	repo   *DiscountRepository
	logger *slog.Logger
}

func NewHandler(repo *DiscountRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type discountRequest struct {
	Code           string           `json:"code"`
	Type           string           `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartsAt       time.Time        `json:"starts_at"`
	EndsAt         time.Time        `json:"ends_at"`
	UsageLimit     *int             `json:"usage_limit,omitempty"`
	Active         bool             `json:"active"`
}

func (req *discountRequest) toDomain() (*domain.Discount, error) {
	switch domain.DiscountType(req.Type) {
	case domain.DiscountTypePercentage, domain.DiscountTypeFixedAmount:
	default:
		return nil, errors.New("type must be PERCENTAGE or FIXED_AMOUNT")
	}
	if req.Code == "" {
		return nil, errors.New("code is required")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, errors.New("ends_at must be after starts_at")
	}

	return &domain.Discount{
		Code:           req.Code,
		Type:           domain.DiscountType(req.Type),
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		UsageLimit:     req.UsageLimit,
		Active:         req.Active,
	}, nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := req.toDomain()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(r.Context(), d); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			h.writeError(w, http.StatusConflict, "discount code already exists")
			return
		}
		h.logger.Error("failed to create discount", "error", err, "code", d.Code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("discount created", "code", d.Code, "type", d.Type)
	h.writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing discount code")
		return
	}

	d, err := h.repo.FindByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "discount not found")
			return
		}
		h.logger.Error("failed to get discount", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		discounts []domain.Discount
		err       error
	)
	if r.URL.Query().Get("active") == "true" {
		discounts, err = h.repo.ListActive(r.Context())
	} else {
		discounts, err = h.repo.List(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list discounts", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("discounts listed", "count", len(discounts))
	h.writeJSON(w, http.StatusOK, discounts)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing discount code")
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Code = code

	d, err := req.toDomain()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Update(r.Context(), d); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "discount not found")
			return
		}
		h.logger.Error("failed to update discount", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("discount updated", "code", code)
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing discount code")
		return
	}

	if err := h.repo.Delete(r.Context(), code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "discount not found")
			return
		}
		h.logger.Error("failed to delete discount", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("discount deleted", "code", code)
	w.WriteHeader(http.StatusNoContent)
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
