package domain

import "time"

// OrderRequestedEvent asks the order workflow to place an order from a
// customer's current cart. Delivery is at-least-once and unordered; a
// duplicate lands on an already-emptied cart and is skipped.
type OrderRequestedEvent struct {
	CustomerID  string    `json:"customer_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// OrderPlacedEvent is published after an order has been committed.
type OrderPlacedEvent struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Total      string    `json:"total"`
	PlacedAt   time.Time `json:"placed_at"`
}
