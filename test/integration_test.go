//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopsmart/internal/cart"
	"github.com/joao-fontenele/shopsmart/internal/catalog"
	"github.com/joao-fontenele/shopsmart/internal/customer"
	"github.com/joao-fontenele/shopsmart/internal/discount"
	"github.com/joao-fontenele/shopsmart/internal/domain"
	"github.com/joao-fontenele/shopsmart/internal/messaging"
	"github.com/joao-fontenele/shopsmart/internal/order"
	"github.com/joao-fontenele/shopsmart/internal/worker"
)

type fixture struct {
	db        *sql.DB
	products  *catalog.ProductRepository
	customers *customer.CustomerRepository
	discounts *discount.DiscountRepository
	carts     *cart.CartRepository
	orders    *order.OrderRepository

	cartService  *cart.Service
	orderService *order.Service
}

func newFixture(t *testing.T, connStr string) *fixture {
	t.Helper()

	db := OpenDB(t, connStr)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:        db,
		products:  catalog.NewProductRepository(db),
		customers: customer.NewCustomerRepository(db),
		discounts: discount.NewDiscountRepository(db),
		carts:     cart.NewCartRepository(db),
		orders:    order.NewOrderRepository(db),
	}
	f.cartService = cart.NewService(db, f.carts, f.products, f.discounts, f.customers, logger)
	f.orderService = order.NewService(db, f.orders, f.carts, f.products, f.discounts, f.customers, nil, logger)
	return f
}

func (f *fixture) createProduct(t *testing.T, ctx context.Context, name, price string, stock int) *domain.Product {
	t.Helper()

	product := &domain.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	if err := f.products.Create(ctx, product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}

func (f *fixture) createCustomer(t *testing.T, ctx context.Context, email string) *domain.Customer {
	t.Helper()

	cust := &domain.Customer{
		Email: email,
		Profile: &domain.Profile{
			FirstName: "Test",
			LastName:  "Customer",
			Addresses: []domain.Address{
				{Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62704", Country: "US", Type: domain.AddressTypeShipping},
			},
		},
	}
	if err := f.customers.Create(ctx, cust); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}
	return cust
}

func (f *fixture) createDiscount(t *testing.T, ctx context.Context, d *domain.Discount) *domain.Discount {
	t.Helper()

	now := time.Now().UTC()
	if d.StartsAt.IsZero() {
		d.StartsAt = now.Add(-time.Hour)
	}
	if d.EndsAt.IsZero() {
		d.EndsAt = now.Add(time.Hour)
	}
	d.Active = true
	if err := f.discounts.Create(ctx, d); err != nil {
		t.Fatalf("failed to create discount: %v", err)
	}
	return d
}

func (f *fixture) stockOf(t *testing.T, ctx context.Context, productID string) int {
	t.Helper()

	product, err := f.products.GetByID(ctx, productID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	return product.StockQuantity
}

func (f *fixture) usedCountOf(t *testing.T, ctx context.Context, code string) int {
	t.Helper()

	d, err := f.discounts.FindByCode(ctx, code)
	if err != nil {
		t.Fatalf("failed to find discount: %v", err)
	}
	return d.UsedCount
}

func TestCartCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	f := newFixture(t, pg.ConnStr)

	productA := f.createProduct(t, ctx, "Espresso Beans", "10.00", 10)
	productB := f.createProduct(t, ctx, "Filter Papers", "5.00", 10)
	cust := f.createCustomer(t, ctx, "checkout@example.com")
	f.createDiscount(t, ctx, &domain.Discount{
		Code:  "SAVE10",
		Type:  domain.DiscountTypePercentage,
		Value: decimal.NewFromInt(10),
	})

	if _, err := f.cartService.AddItem(ctx, cust.ID, productA.ID, 2); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	crt, err := f.cartService.AddItem(ctx, cust.ID, productB.ID, 1)
	if err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	if !crt.Subtotal.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected subtotal 25.00, got %s", crt.Subtotal)
	}

	crt, err = f.cartService.ApplyCoupon(ctx, cust.ID, "SAVE10")
	if err != nil {
		t.Fatalf("failed to apply coupon: %v", err)
	}
	if !crt.DiscountAmount.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("expected discount 2.50, got %s", crt.DiscountAmount)
	}
	if !crt.TotalAmount.Equal(decimal.RequireFromString("22.50")) {
		t.Fatalf("expected total 22.50, got %s", crt.TotalAmount)
	}

	placed, err := f.orderService.PlaceOrder(ctx, cust.ID)
	if err != nil {
		t.Fatalf("failed to place order: %v", err)
	}

	if placed.Status != domain.OrderStatusPending {
		t.Errorf("expected status PENDING, got %s", placed.Status)
	}
	if !placed.TotalAmount.Equal(decimal.RequireFromString("22.50")) {
		t.Errorf("expected order total 22.50, got %s", placed.TotalAmount)
	}
	if placed.CouponCode == nil || *placed.CouponCode != "SAVE10" {
		t.Errorf("expected coupon SAVE10 on order, got %v", placed.CouponCode)
	}
	if placed.ShippingAddress != "1 Main St, Springfield, IL, 62704 - US" {
		t.Errorf("unexpected shipping address: %s", placed.ShippingAddress)
	}
	if len(placed.Items) != 2 {
		t.Fatalf("expected 2 order items, got %+v", placed.Items)
	}
	for _, item := range placed.Items {
		switch item.ProductID {
		case productA.ID:
			if item.Quantity != 2 || !item.Price.Equal(decimal.RequireFromString("10.00")) {
				t.Errorf("unexpected line for product A: %+v", item)
			}
		case productB.ID:
			if item.Quantity != 1 || !item.Price.Equal(decimal.RequireFromString("5.00")) {
				t.Errorf("unexpected line for product B: %+v", item)
			}
		default:
			t.Errorf("unexpected product in order: %s", item.ProductID)
		}
	}

	// Stock was reserved at add time and ownership transferred at
	// placement; clearing the cart must not restore it.
	if got := f.stockOf(t, ctx, productA.ID); got != 8 {
		t.Errorf("expected stock 8 after placement, got %d", got)
	}
	if got := f.stockOf(t, ctx, productB.ID); got != 9 {
		t.Errorf("expected stock 9 after placement, got %d", got)
	}

	if got := f.usedCountOf(t, ctx, "SAVE10"); got != 1 {
		t.Errorf("expected used_count 1, got %d", got)
	}

	crt, err = f.cartService.GetByCustomer(ctx, cust.ID)
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if !crt.IsEmpty() {
		t.Errorf("expected empty cart after placement, got %d items", len(crt.Items))
	}
	if crt.CouponCode != nil {
		t.Errorf("expected cleared coupon, got %v", crt.CouponCode)
	}
	if !crt.TotalAmount.IsZero() {
		t.Errorf("expected zero total, got %s", crt.TotalAmount)
	}
}

func TestStockReservation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	f := newFixture(t, pg.ConnStr)

	product := f.createProduct(t, ctx, "Limited Widget", "5.00", 3)
	first := f.createCustomer(t, ctx, "first@example.com")
	second := f.createCustomer(t, ctx, "second@example.com")

	if _, err := f.cartService.AddItem(ctx, first.ID, product.ID, 2); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 1 {
		t.Fatalf("expected stock 1 after reservation, got %d", got)
	}

	// Re-adding 2 needs 2 more units but only 1 remains.
	_, err := f.cartService.AddItem(ctx, first.ID, product.ID, 2)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 1 {
		t.Errorf("failed reservation must not change stock, got %d", got)
	}

	crt, err := f.cartService.GetByCustomer(ctx, first.ID)
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if item := crt.FindItem(product.ID); item == nil || item.Quantity != 2 {
		t.Errorf("failed add must leave the line at quantity 2, got %+v", item)
	}

	_, err = f.cartService.AddItem(ctx, second.ID, product.ID, 2)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for second customer, got %v", err)
	}

	// First customer already holds 2; placement must succeed even though
	// shelf stock (1) is below the cart quantity.
	if _, err := f.orderService.PlaceOrder(ctx, first.ID); err != nil {
		t.Fatalf("placement of reserved items failed: %v", err)
	}

	if _, err := f.cartService.AddItem(ctx, second.ID, product.ID, 1); err != nil {
		t.Fatalf("failed to add remaining stock: %v", err)
	}
	if err := f.cartService.Clear(ctx, second.ID); err != nil {
		t.Fatalf("failed to clear cart: %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 1 {
		t.Errorf("expected stock restored to 1 after clear, got %d", got)
	}
}

func TestQuantityUpdateAdjustsReservation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	f := newFixture(t, pg.ConnStr)

	product := f.createProduct(t, ctx, "Notebook", "3.00", 10)
	cust := f.createCustomer(t, ctx, "qty@example.com")

	if _, err := f.cartService.AddItem(ctx, cust.ID, product.ID, 4); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 6 {
		t.Fatalf("expected stock 6, got %d", got)
	}

	if _, err := f.cartService.UpdateQuantity(ctx, cust.ID, product.ID, 7); err != nil {
		t.Fatalf("failed to raise quantity: %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 3 {
		t.Errorf("expected stock 3 after raising to 7, got %d", got)
	}

	if _, err := f.cartService.UpdateQuantity(ctx, cust.ID, product.ID, 2); err != nil {
		t.Fatalf("failed to lower quantity: %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 8 {
		t.Errorf("expected stock 8 after lowering to 2, got %d", got)
	}

	// Zero quantity removes the line and releases everything.
	if _, err := f.cartService.UpdateQuantity(ctx, cust.ID, product.ID, 0); err != nil {
		t.Fatalf("failed to remove via zero quantity: %v", err)
	}
	if got := f.stockOf(t, ctx, product.ID); got != 10 {
		t.Errorf("expected stock fully restored, got %d", got)
	}
}

func TestCouponRules(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	f := newFixture(t, pg.ConnStr)

	product := f.createProduct(t, ctx, "Coffee Mug", "10.00", 100)
	cust := f.createCustomer(t, ctx, "coupons@example.com")

	minAmount := decimal.RequireFromString("50.00")
	f.createDiscount(t, ctx, &domain.Discount{
		Code:           "BIGSPEND",
		Type:           domain.DiscountTypeFixedAmount,
		Value:          decimal.NewFromInt(5),
		MinOrderAmount: &minAmount,
	})

	t.Run("rejects coupon below minimum order amount", func(t *testing.T) {
		crt, err := f.cartService.AddItem(ctx, cust.ID, product.ID, 2)
		if err != nil {
			t.Fatalf("failed to add item: %v", err)
		}

		_, err = f.cartService.ApplyCoupon(ctx, cust.ID, "BIGSPEND")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument, got %v", err)
		}

		after, err := f.cartService.GetByCustomer(ctx, cust.ID)
		if err != nil {
			t.Fatalf("failed to get cart: %v", err)
		}
		if after.CouponCode != nil {
			t.Errorf("rejected coupon must not stick, got %v", after.CouponCode)
		}
		if !after.TotalAmount.Equal(crt.TotalAmount) {
			t.Errorf("rejected coupon must not change totals: %s != %s", after.TotalAmount, crt.TotalAmount)
		}
	})

	t.Run("clears coupon when cart shrinks below minimum", func(t *testing.T) {
		if _, err := f.cartService.UpdateQuantity(ctx, cust.ID, product.ID, 6); err != nil {
			t.Fatalf("failed to set quantity: %v", err)
		}

		crt, err := f.cartService.ApplyCoupon(ctx, cust.ID, "BIGSPEND")
		if err != nil {
			t.Fatalf("failed to apply coupon: %v", err)
		}
		if !crt.DiscountAmount.Equal(decimal.RequireFromString("5.00")) {
			t.Fatalf("expected discount 5.00, got %s", crt.DiscountAmount)
		}

		crt, err = f.cartService.UpdateQuantity(ctx, cust.ID, product.ID, 2)
		if err != nil {
			t.Fatalf("failed to lower quantity: %v", err)
		}
		if crt.CouponCode != nil {
			t.Errorf("expected coupon cleared below minimum, got %v", crt.CouponCode)
		}
		if !crt.DiscountAmount.IsZero() {
			t.Errorf("expected zero discount, got %s", crt.DiscountAmount)
		}
		if !crt.TotalAmount.Equal(decimal.RequireFromString("20.00")) {
			t.Errorf("expected total 20.00, got %s", crt.TotalAmount)
		}
	})

	t.Run("rejects removing a coupon that is not applied", func(t *testing.T) {
		_, err := f.cartService.RemoveCoupon(ctx, cust.ID)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("rejects coupon on empty cart", func(t *testing.T) {
		other := f.createCustomer(t, ctx, "empty@example.com")
		if _, err := f.cartService.GetOrCreateCart(ctx, other.ID); err != nil {
			t.Fatalf("failed to create cart: %v", err)
		}
		_, err := f.cartService.ApplyCoupon(ctx, other.ID, "BIGSPEND")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestCouponUsageLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	f := newFixture(t, pg.ConnStr)

	product := f.createProduct(t, ctx, "Sticker Pack", "4.00", 100)
	limit := 1
	f.createDiscount(t, ctx, &domain.Discount{
		Code:       "ONCE",
		Type:       domain.DiscountTypePercentage,
		Value:      decimal.NewFromInt(50),
		UsageLimit: &limit,
	})

	first := f.createCustomer(t, ctx, "limit-1@example.com")
	if _, err := f.cartService.AddItem(ctx, first.ID, product.ID, 1); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	if _, err := f.cartService.ApplyCoupon(ctx, first.ID, "ONCE"); err != nil {
		t.Fatalf("failed to apply coupon: %v", err)
	}
	if _, err := f.orderService.PlaceOrder(ctx, first.ID); err != nil {
		t.Fatalf("failed to place order: %v", err)
	}
	if got := f.usedCountOf(t, ctx, "ONCE"); got != 1 {
		t.Fatalf("expected used_count 1, got %d", got)
	}

	second := f.createCustomer(t, ctx, "limit-2@example.com")
	if _, err := f.cartService.AddItem(ctx, second.ID, product.ID, 1); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	_, err := f.cartService.ApplyCoupon(ctx, second.ID, "ONCE")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected exhausted coupon to be rejected, got %v", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	f := newFixture(t, pg.ConnStr)

	product := f.createProduct(t, ctx, "Headphones", "80.00", 5)
	f.createDiscount(t, ctx, &domain.Discount{
		Code:  "TENOFF",
		Type:  domain.DiscountTypeFixedAmount,
		Value: decimal.NewFromInt(10),
	})

	place := func(t *testing.T, email string) *domain.Order {
		t.Helper()
		cust := f.createCustomer(t, ctx, email)
		if _, err := f.cartService.AddItem(ctx, cust.ID, product.ID, 1); err != nil {
			t.Fatalf("failed to add item: %v", err)
		}
		if _, err := f.cartService.ApplyCoupon(ctx, cust.ID, "TENOFF"); err != nil {
			t.Fatalf("failed to apply coupon: %v", err)
		}
		placed, err := f.orderService.PlaceOrder(ctx, cust.ID)
		if err != nil {
			t.Fatalf("failed to place order: %v", err)
		}
		return placed
	}

	t.Run("cancel restores stock and coupon usage", func(t *testing.T) {
		placed := place(t, "cancel@example.com")
		stockBefore := f.stockOf(t, ctx, product.ID)
		usedBefore := f.usedCountOf(t, ctx, "TENOFF")

		if err := f.orderService.CancelOrder(ctx, placed.ID); err != nil {
			t.Fatalf("failed to cancel order: %v", err)
		}

		got, err := f.orderService.GetByID(ctx, placed.ID)
		if err != nil {
			t.Fatalf("failed to get order: %v", err)
		}
		if got.Status != domain.OrderStatusCancelled {
			t.Errorf("expected CANCELLED, got %s", got.Status)
		}
		if stock := f.stockOf(t, ctx, product.ID); stock != stockBefore+1 {
			t.Errorf("expected stock %d after cancel, got %d", stockBefore+1, stock)
		}
		if used := f.usedCountOf(t, ctx, "TENOFF"); used != usedBefore-1 {
			t.Errorf("expected used_count %d after cancel, got %d", usedBefore-1, used)
		}

		err = f.orderService.CancelOrder(ctx, placed.ID)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("cancelling twice must fail with invalid state, got %v", err)
		}
		if stock := f.stockOf(t, ctx, product.ID); stock != stockBefore+1 {
			t.Errorf("second cancel must not mutate stock, got %d", stock)
		}
	})

	t.Run("delivered orders cannot be cancelled", func(t *testing.T) {
		placed := place(t, "delivered@example.com")
		if _, err := f.orderService.UpdateStatus(ctx, placed.ID, "delivered"); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		stockBefore := f.stockOf(t, ctx, product.ID)
		err := f.orderService.CancelOrder(ctx, placed.ID)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected invalid state, got %v", err)
		}
		if stock := f.stockOf(t, ctx, product.ID); stock != stockBefore {
			t.Errorf("failed cancel must not mutate stock, got %d", stock)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		placed := place(t, "status@example.com")
		_, err := f.orderService.UpdateStatus(ctx, placed.ID, "TELEPORTED")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("payment moves order to PAID exactly once", func(t *testing.T) {
		placed := place(t, "payment@example.com")

		payment, err := f.orderService.ProcessPayment(ctx, placed.ID, "CREDIT_CARD", placed.TotalAmount)
		if err != nil {
			t.Fatalf("failed to process payment: %v", err)
		}
		if payment.Status != "COMPLETED" {
			t.Errorf("expected COMPLETED payment, got %s", payment.Status)
		}

		got, err := f.orderService.GetByID(ctx, placed.ID)
		if err != nil {
			t.Fatalf("failed to get order: %v", err)
		}
		if got.Status != domain.OrderStatusPaid {
			t.Errorf("expected PAID, got %s", got.Status)
		}

		_, err = f.orderService.ProcessPayment(ctx, placed.ID, "CREDIT_CARD", placed.TotalAmount)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected invalid state on double payment, got %v", err)
		}
	})

	t.Run("delete purges without side effects", func(t *testing.T) {
		placed := place(t, "purge@example.com")
		stockBefore := f.stockOf(t, ctx, product.ID)
		usedBefore := f.usedCountOf(t, ctx, "TENOFF")

		if err := f.orderService.DeleteOrder(ctx, placed.ID); err != nil {
			t.Fatalf("failed to delete order: %v", err)
		}
		_, err := f.orderService.GetByID(ctx, placed.ID)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found after delete, got %v", err)
		}
		if stock := f.stockOf(t, ctx, product.ID); stock != stockBefore {
			t.Errorf("delete must not restore stock, got %d", stock)
		}
		if used := f.usedCountOf(t, ctx, "TENOFF"); used != usedBefore {
			t.Errorf("delete must not touch coupon usage, got %d", used)
		}
	})

	t.Run("placing with empty cart fails", func(t *testing.T) {
		cust := f.createCustomer(t, ctx, "nocart@example.com")
		_, err := f.orderService.PlaceOrder(ctx, cust.ID)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return data
}

func TestOrderRequestedWorkerFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	f := newFixture(t, pg.ConnStr)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	product := f.createProduct(t, ctx, "Keyboard", "45.00", 4)
	cust := f.createCustomer(t, ctx, "async@example.com")
	if _, err := f.cartService.AddItem(ctx, cust.ID, product.ID, 1); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	producer := messaging.NewProducer(brokers, messaging.TopicOrderRequested)
	defer func() { _ = producer.Close() }()

	event := domain.OrderRequestedEvent{CustomerID: cust.ID, RequestedAt: time.Now().UTC()}
	if err := producer.Publish(ctx, cust.ID, event); err != nil {
		t.Fatalf("failed to publish request: %v", err)
	}

	handler := worker.NewPlacementHandler(f.orderService, logger)
	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderRequested, messaging.GroupOrderWorker,
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stopConsuming := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, handler.Handle)
	}()

	deadline := time.After(90 * time.Second)
	var placed []domain.Order
	for len(placed) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the worker to place the order")
		case <-time.After(time.Second):
			var err error
			placed, err = f.orderService.GetByCustomer(ctx, cust.ID)
			if err != nil {
				t.Fatalf("failed to list orders: %v", err)
			}
		}
	}
	stopConsuming()
	<-done

	if len(placed) != 1 {
		t.Fatalf("expected 1 order, got %d", len(placed))
	}
	if placed[0].Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", placed[0].Status)
	}
	if !placed[0].TotalAmount.Equal(decimal.RequireFromString("45.00")) {
		t.Errorf("expected total 45.00, got %s", placed[0].TotalAmount)
	}

	// A duplicate delivery lands on the now-empty cart and is skipped.
	if err := handler.Handle(ctx, mustJSON(t, event)); err != nil {
		t.Errorf("duplicate delivery must be tolerated, got %v", err)
	}
	orders, err := f.orderService.GetByCustomer(ctx, cust.ID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("duplicate delivery must not create a second order, got %d", len(orders))
	}
}
