package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopsmart/internal/cart"
	"github.com/joao-fontenele/shopsmart/internal/catalog"
	"github.com/joao-fontenele/shopsmart/internal/customer"
	"github.com/joao-fontenele/shopsmart/internal/database"
	"github.com/joao-fontenele/shopsmart/internal/discount"
	"github.com/joao-fontenele/shopsmart/internal/domain"
	"github.com/joao-fontenele/shopsmart/internal/messaging"
)

// Service is the order workflow: placement from a cart, status updates,
// cancellation with stock and coupon rollback, payments. Placement and
// cancellation are all-or-nothing transactions.
type Service struct {
	db        *sql.DB
	orders    *OrderRepository
	carts     *cart.CartRepository
	products  *catalog.ProductRepository
	discounts *discount.DiscountRepository
	customers *customer.CustomerRepository
	producer  *messaging.Producer
	logger    *slog.Logger
	placed    metric.Int64Counter
}

func NewService(db *sql.DB, orders *OrderRepository, carts *cart.CartRepository,
	products *catalog.ProductRepository, discounts *discount.DiscountRepository,
	customers *customer.CustomerRepository, producer *messaging.Producer,
	logger *slog.Logger) *Service {
	placed, err := otel.Meter("shopsmart/order").Int64Counter("orders.placed",
		metric.WithDescription("Number of orders placed"))
	if err != nil {
		logger.Warn("failed to create orders.placed counter", "error", err)
	}
	return &Service{
		db:        db,
		orders:    orders,
		carts:     carts,
		products:  products,
		discounts: discounts,
		customers: customers,
		producer:  producer,
		logger:    logger,
		placed:    placed,
	}
}

// PlaceOrder snapshots the customer's cart into an immutable PENDING
// order. Stock was already reserved when items entered the cart, so
// placement only persists the snapshot and transfers stock ownership to
// the order; the cart is cleared without releasing anything.
func (s *Service) PlaceOrder(ctx context.Context, customerID string) (*domain.Order, error) {
	var order *domain.Order

	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		cust, err := s.customers.WithTx(tx).GetByID(ctx, customerID)
		if err != nil {
			return err
		}

		crt, err := s.carts.WithTx(tx).GetByCustomer(ctx, customerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("cannot place an order with an empty cart: %w", domain.ErrInvalidArgument)
			}
			return err
		}

		if crt.IsEmpty() {
			return fmt.Errorf("cannot place an order with an empty cart: %w", domain.ErrInvalidArgument)
		}

		// Defensive re-check: the cart's quantities were reserved at
		// add time, so this only catches products removed from the
		// catalog or stock driven negative by external adjustments.
		for _, item := range crt.Items {
			product, err := s.products.WithTx(tx).GetByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if product.StockQuantity < 0 {
				return fmt.Errorf("product %s: %w", product.ID, domain.ErrInsufficientStock)
			}
		}

		now := time.Now().UTC()
		order = &domain.Order{
			CustomerID:      customerID,
			Status:          domain.OrderStatusPending,
			TotalAmount:     crt.TotalAmount,
			CouponCode:      crt.CouponCode,
			DiscountAmount:  crt.DiscountAmount,
			ShippingAddress: cust.ShippingAddress(),
			PlacedAt:        now,
		}
		for _, item := range crt.Items {
			order.Items = append(order.Items, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Price,
			})
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		// Usage accounting is best effort: a coupon that hit its limit
		// between apply and placement does not fail the order.
		if order.CouponCode != nil && order.DiscountAmount.GreaterThan(decimal.Zero) {
			applied, err := s.discounts.WithTx(tx).IncrementUsage(ctx, *order.CouponCode)
			if err != nil {
				return err
			}
			if !applied {
				s.logger.Warn("coupon usage limit reached, usage not recorded",
					"code", *order.CouponCode, "order_id", order.ID)
			}
		}

		if err := s.carts.WithTx(tx).DeleteItems(ctx, crt.ID); err != nil {
			return err
		}
		crt.Items = nil
		crt.CouponCode = nil
		crt.Recalculate(nil, now)
		return s.carts.WithTx(tx).SaveTotals(ctx, crt)
	})
	if err != nil {
		return nil, err
	}

	if s.placed != nil {
		s.placed.Add(ctx, 1)
	}

	if s.producer != nil {
		event := domain.OrderPlacedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Total:      order.TotalAmount.StringFixed(2),
			PlacedAt:   order.PlacedAt,
		}
		if err := s.producer.Publish(ctx, order.ID, event); err != nil {
			s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	s.logger.Info("order placed", "order_id", order.ID, "customer_id", customerID,
		"total", order.TotalAmount.StringFixed(2))
	return order, nil
}

// CreateOrderFromCart is the entry point used by the async order
// notifier; it is an alias for PlaceOrder.
func (s *Service) CreateOrderFromCart(ctx context.Context, customerID string) (*domain.Order, error) {
	return s.PlaceOrder(ctx, customerID)
}

func (s *Service) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) GetByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *Service) GetAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAll(ctx)
}

// UpdateStatus overwrites the order's status. The only guard is the enum
// parse; cancellation goes through CancelOrder, which rolls back stock
// and coupon usage.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, orderID, parsed); err != nil {
		return nil, err
	}

	s.logger.Info("order status updated", "order_id", orderID, "status", parsed)
	return s.orders.GetByID(ctx, orderID)
}

// CancelOrder reverses a placement: restores every item's stock and the
// coupon usage, then marks the order CANCELLED. Delivered or already
// cancelled orders are rejected.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		order, err := s.orders.WithTx(tx).GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.Cancellable() {
			return fmt.Errorf("cannot cancel an order that is already %s: %w",
				order.Status, domain.ErrInvalidState)
		}

		for _, item := range order.Items {
			if err := s.products.WithTx(tx).Release(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if order.CouponCode != nil && order.DiscountAmount.GreaterThan(decimal.Zero) {
			if err := s.discounts.WithTx(tx).DecrementUsage(ctx, *order.CouponCode); err != nil {
				return err
			}
		}

		return s.orders.WithTx(tx).UpdateStatus(ctx, orderID, domain.OrderStatusCancelled)
	})
	if err != nil {
		return err
	}

	s.logger.Info("order cancelled", "order_id", orderID)
	return nil
}

// DeleteOrder hard-removes the order record. This is an administrative
// purge, not a cancellation: stock and coupon usage are left untouched.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}

	s.logger.Info("order deleted", "order_id", orderID)
	return nil
}

// ProcessPayment captures a payment against a pending or shipped order
// and moves it to PAID.
func (s *Service) ProcessPayment(ctx context.Context, orderID, method string, amount decimal.Decimal) (*domain.Payment, error) {
	if method == "" || !amount.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("payment method and a positive amount are required: %w", domain.ErrInvalidArgument)
	}

	var payment *domain.Payment
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		order, err := s.orders.WithTx(tx).GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status == domain.OrderStatusPaid || order.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("order %s is already %s: %w", orderID, order.Status, domain.ErrInvalidState)
		}

		payment = &domain.Payment{
			OrderID: orderID,
			Method:  method,
			Amount:  amount.Round(2),
			Status:  "COMPLETED",
			PaidAt:  time.Now().UTC(),
		}
		if err := s.orders.WithTx(tx).CreatePayment(ctx, payment); err != nil {
			return err
		}

		return s.orders.WithTx(tx).UpdateStatus(ctx, orderID, domain.OrderStatusPaid)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment captured", "order_id", orderID, "payment_id", payment.ID,
		"amount", payment.Amount.StringFixed(2))
	return payment, nil
}
