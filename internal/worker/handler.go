package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/shopsmart/internal/domain"
)

// OrderPlacer turns a customer's cart into an order.
type OrderPlacer interface {
	CreateOrderFromCart(ctx context.Context, customerID string) (*domain.Order, error)
}

// PlacementHandler consumes order.requested events and places the order
// for the requesting customer. Delivery is at-least-once: a redelivered
// event finds the cart already cleared and is skipped, not retried.
type PlacementHandler struct {
	placer OrderPlacer
	logger *slog.Logger
}

func NewPlacementHandler(placer OrderPlacer, logger *slog.Logger) *PlacementHandler {
	return &PlacementHandler{
		placer: placer,
		logger: logger,
	}
}

func (h *PlacementHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderRequestedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order requested event: %w", err)
	}

	h.logger.Info("processing order requested event", "customer_id", event.CustomerID)

	order, err := h.placer.CreateOrderFromCart(ctx, event.CustomerID)
	if err != nil {
		// An empty cart means the request was already fulfilled or the
		// customer cleared it; retrying cannot make it succeed.
		if errors.Is(err, domain.ErrInvalidArgument) {
			h.logger.Warn("skipping order request", "customer_id", event.CustomerID, "reason", err)
			return nil
		}

		h.logger.Error("failed to place order", "error", err, "customer_id", event.CustomerID)
		return fmt.Errorf("place order for customer %s: %w", event.CustomerID, err)
	}

	h.logger.Info("order placed", "order_id", order.ID, "customer_id", event.CustomerID, "total", order.TotalAmount)
	return nil
}
