package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/shopsmart/internal/catalog"
	"github.com/joao-fontenele/shopsmart/internal/customer"
	"github.com/joao-fontenele/shopsmart/internal/database"
	"github.com/joao-fontenele/shopsmart/internal/discount"
	"github.com/joao-fontenele/shopsmart/internal/domain"
)

// Service is the cart engine. Every mutating operation runs inside a
// single transaction: stock reservation, line mutation and totals
// recomputation either all commit or none do.
type Service struct {
	db        *sql.DB
	carts     *CartRepository
	products  *catalog.ProductRepository
	discounts *discount.DiscountRepository
	customers *customer.CustomerRepository
	logger    *slog.Logger
}

func NewService(db *sql.DB, carts *CartRepository, products *catalog.ProductRepository,
	discounts *discount.DiscountRepository, customers *customer.CustomerRepository,
	logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		carts:     carts,
		products:  products,
		discounts: discounts,
		customers: customers,
		logger:    logger,
	}
}

// GetOrCreateCart returns the customer's cart, lazily creating it on first
// access. Totals are refreshed so a coupon that expired since the last
// mutation does not linger.
func (s *Service) GetOrCreateCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		cart, err = s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// GetByCustomer is the read entry point used by the HTTP layer; it shares
// get-or-create semantics with the original system.
func (s *Service) GetByCustomer(ctx context.Context, customerID string) (*domain.Cart, error) {
	return s.GetOrCreateCart(ctx, customerID)
}

func (s *Service) GetByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.carts.GetByID(ctx, cartID)
}

// AddItem reserves stock for the requested quantity and adds it to the
// cart, creating the line at the product's current price or increasing an
// existing line's quantity at its captured price.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrInvalidArgument)
	}

	var cart *domain.Cart
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		cart, err = s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		product, err := s.products.WithTx(tx).GetByID(ctx, productID)
		if err != nil {
			return err
		}

		// Stock is reserved eagerly, at add-to-cart time.
		if err := s.products.WithTx(tx).Reserve(ctx, productID, quantity); err != nil {
			return err
		}

		item := cart.FindItem(productID)
		if item != nil {
			item.Quantity += quantity
		} else {
			cart.Items = append(cart.Items, domain.CartItem{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  quantity,
				Price:     product.Price,
			})
			item = &cart.Items[len(cart.Items)-1]
		}

		if err := s.carts.WithTx(tx).UpsertItem(ctx, item); err != nil {
			return err
		}

		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item added to cart", "customer_id", customerID, "product_id", productID, "quantity", quantity)
	return cart, nil
}

// UpdateQuantity sets a line to a new quantity, reserving or releasing the
// stock delta. A non-positive quantity removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, productID string, newQuantity int) (*domain.Cart, error) {
	if newQuantity <= 0 {
		return s.RemoveItem(ctx, customerID, productID)
	}

	var cart *domain.Cart
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		cart, err = s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		item := cart.FindItem(productID)
		if item == nil {
			return fmt.Errorf("product %s not in cart: %w", productID, domain.ErrNotFound)
		}

		delta := newQuantity - item.Quantity
		if delta > 0 {
			if err := s.products.WithTx(tx).Reserve(ctx, productID, delta); err != nil {
				return err
			}
		} else if delta < 0 {
			if err := s.products.WithTx(tx).Release(ctx, productID, -delta); err != nil {
				return err
			}
		}

		item.Quantity = newQuantity
		if err := s.carts.WithTx(tx).UpsertItem(ctx, item); err != nil {
			return err
		}

		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart quantity updated", "customer_id", customerID, "product_id", productID, "quantity", newQuantity)
	return cart, nil
}

// RemoveItem releases the line's full reserved quantity and deletes it.
func (s *Service) RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		cart, err = s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		item := cart.FindItem(productID)
		if item == nil {
			return fmt.Errorf("product %s not in cart: %w", productID, domain.ErrNotFound)
		}

		if err := s.products.WithTx(tx).Release(ctx, productID, item.Quantity); err != nil {
			return err
		}

		if err := s.carts.WithTx(tx).DeleteItem(ctx, cart.ID, productID); err != nil {
			return err
		}

		items := cart.Items[:0]
		for _, it := range cart.Items {
			if it.ProductID != productID {
				items = append(items, it)
			}
		}
		cart.Items = items

		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item removed from cart", "customer_id", customerID, "product_id", productID)
	return cart, nil
}

// Clear releases every reserved quantity, empties the cart and resets the
// coupon and totals.
func (s *Service) Clear(ctx context.Context, customerID string) error {
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		cart, err := s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		for _, item := range cart.Items {
			if err := s.products.WithTx(tx).Release(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.carts.WithTx(tx).DeleteItems(ctx, cart.ID); err != nil {
			return err
		}

		cart.Items = nil
		cart.CouponCode = nil
		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return err
	}

	s.logger.Info("cart cleared", "customer_id", customerID)
	return nil
}

// ApplyCoupon validates the code against the cart's current subtotal and
// applies it.
func (s *Service) ApplyCoupon(ctx context.Context, customerID, code string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		cart, err = s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		if cart.IsEmpty() {
			return fmt.Errorf("cannot apply coupon to an empty cart: %w", domain.ErrInvalidArgument)
		}

		d, err := s.discounts.WithTx(tx).FindByCode(ctx, code)
		if err != nil {
			return err
		}

		if !d.ValidAt(time.Now().UTC(), cart.ComputeSubtotal()) {
			return fmt.Errorf("coupon %s is invalid, expired or below the minimum order amount: %w",
				code, domain.ErrInvalidArgument)
		}

		cart.CouponCode = &code
		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("coupon applied", "customer_id", customerID, "code", code)
	return cart, nil
}

// RemoveCoupon clears the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, customerID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		cart, err = s.getOrCreate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		if cart.CouponCode == nil {
			return fmt.Errorf("no coupon is currently applied: %w", domain.ErrInvalidArgument)
		}

		cart.CouponCode = nil
		return s.recalculate(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("coupon removed", "customer_id", customerID)
	return cart, nil
}

func (s *Service) getOrCreate(ctx context.Context, tx *sql.Tx, customerID string) (*domain.Cart, error) {
	if _, err := s.customers.WithTx(tx).GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	cart, err := s.carts.WithTx(tx).GetByCustomer(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return s.carts.WithTx(tx).Create(ctx, customerID)
}

// recalculate refreshes the cart's totals from its items and coupon and
// persists them. A coupon that no longer resolves or validates is cleared
// silently.
func (s *Service) recalculate(ctx context.Context, tx *sql.Tx, cart *domain.Cart) error {
	var coupon *domain.Discount
	if cart.CouponCode != nil {
		d, err := s.discounts.WithTx(tx).FindByCode(ctx, *cart.CouponCode)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		coupon = d
	}

	cart.Recalculate(coupon, time.Now().UTC())
	return s.carts.WithTx(tx).SaveTotals(ctx, cart)
}
