package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus accepts a status string case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(strings.ToUpper(s)) {
	case OrderStatusPending:
		return OrderStatusPending, nil
	case OrderStatusPaid:
		return OrderStatusPaid, nil
	case OrderStatusShipped:
		return OrderStatusShipped, nil
	case OrderStatusDelivered:
		return OrderStatusDelivered, nil
	case OrderStatusCancelled:
		return OrderStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid order status %q: %w", s, ErrInvalidArgument)
	}
}

// Cancellable reports whether an order in this status may still be
// cancelled. DELIVERED and CANCELLED are terminal.
func (s OrderStatus) Cancellable() bool {
	return s != OrderStatusDelivered && s != OrderStatusCancelled
}

type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	Items           []OrderItem     `json:"items"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CouponCode      *string         `json:"coupon_code,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	ShippingAddress string          `json:"shipping_address"`
	PlacedAt        time.Time       `json:"placed_at"`
}

// OrderItem stores quantity and price at order time independently of the
// product's current price.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Payment struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Method  string          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	PaidAt  time.Time       `json:"paid_at"`
}
