package cart

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopsmart/internal/database"
	"github.com/joao-fontenele/shopsmart/internal/domain"
)

type CartRepository struct {
	db database.DBTX
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CartRepository) WithTx(tx *sql.Tx) *CartRepository {
	return &CartRepository{db: tx}
}

func (r *CartRepository) Create(ctx context.Context, customerID string) (*domain.Cart, error) {
	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:             uuid.New().String(),
		CustomerID:     customerID,
		Items:          []domain.CartItem{},
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, customer_id, coupon_code, subtotal, discount_amount, total_amount, created_at, updated_at)
		VALUES ($1, $2, NULL, 0, 0, 0, $3, $3)
	`, cart.ID, cart.CustomerID, now)
	if err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *CartRepository) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *CartRepository) GetByCustomer(ctx context.Context, customerID string) (*domain.Cart, error) {
	return r.get(ctx, `WHERE customer_id = $1`, customerID)
}

func (r *CartRepository) get(ctx context.Context, where string, arg string) (*domain.Cart, error) {
	cart := &domain.Cart{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, coupon_code, subtotal, discount_amount, total_amount, created_at, updated_at
		FROM carts
	`+where, arg).Scan(&cart.ID, &cart.CustomerID, &cart.CouponCode, &cart.Subtotal,
		&cart.DiscountAmount, &cart.TotalAmount, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("cart for %s: %w", arg, domain.ErrNotFound)
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT cart_id, product_id, quantity, price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at
	`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.CartID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// UpsertItem inserts a line or, when the product is already in the cart,
// overwrites its quantity. The captured price is kept on conflict.
func (r *CartRepository) UpsertItem(ctx context.Context, item *domain.CartItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
	`, item.CartID, item.ProductID, item.Quantity, item.Price)
	return err
}

func (r *CartRepository) DeleteItem(ctx context.Context, cartID, productID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s not in cart: %w", productID, domain.ErrNotFound)
	}

	return nil
}

func (r *CartRepository) DeleteItems(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// SaveTotals persists the recomputed coupon and totals columns.
func (r *CartRepository) SaveTotals(ctx context.Context, cart *domain.Cart) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE carts
		SET coupon_code = $2, subtotal = $3, discount_amount = $4, total_amount = $5, updated_at = $6
		WHERE id = $1
	`, cart.ID, cart.CouponCode, cart.Subtotal, cart.DiscountAmount, cart.TotalAmount, cart.UpdatedAt)
	return err
}
