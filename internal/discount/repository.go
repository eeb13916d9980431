package discount

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/shopsmart/internal/database"
	"github.com/joao-fontenele/shopsmart/internal/domain"
)

type DiscountRepository struct {
	db database.DBTX
}

func NewDiscountRepository(db *sql.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *DiscountRepository) WithTx(tx *sql.Tx) *DiscountRepository {
	return &DiscountRepository{db: tx}
}

const discountColumns = `code, type, value, min_order_amount, starts_at, ends_at,
	usage_limit, used_count, active, created_at, updated_at`

func scanDiscount(row interface{ Scan(...any) error }) (*domain.Discount, error) {
	d := &domain.Discount{}
	err := row.Scan(&d.Code, &d.Type, &d.Value, &d.MinOrderAmount, &d.StartsAt,
		&d.EndsAt, &d.UsageLimit, &d.UsedCount, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	now := time.Now().UTC()
	d.UsedCount = 0
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discounts (code, type, value, min_order_amount, starts_at, ends_at,
			usage_limit, used_count, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $9)
	`, d.Code, d.Type, d.Value, d.MinOrderAmount, d.StartsAt, d.EndsAt,
		d.UsageLimit, d.Active, now)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("discount code %s already exists: %w", d.Code, domain.ErrConflict)
		}
		return err
	}

	return nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*domain.Discount, error) {
	d, err := scanDiscount(r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE code = $1`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("discount %s: %w", code, domain.ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (r *DiscountRepository) List(ctx context.Context) ([]domain.Discount, error) {
	return r.list(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY code`)
}

// ListActive returns active coupons whose validity window has not closed.
func (r *DiscountRepository) ListActive(ctx context.Context) ([]domain.Discount, error) {
	return r.list(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE active AND ends_at > NOW() ORDER BY code`)
}

func (r *DiscountRepository) list(ctx context.Context, query string) ([]domain.Discount, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	discounts := []domain.Discount{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return discounts, nil
}

func (r *DiscountRepository) Update(ctx context.Context, d *domain.Discount) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE discounts
		SET type = $2, value = $3, min_order_amount = $4, starts_at = $5,
			ends_at = $6, usage_limit = $7, active = $8, updated_at = NOW()
		WHERE code = $1
	`, d.Code, d.Type, d.Value, d.MinOrderAmount, d.StartsAt, d.EndsAt,
		d.UsageLimit, d.Active)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("discount %s: %w", d.Code, domain.ErrNotFound)
	}

	return nil
}

func (r *DiscountRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM discounts WHERE code = $1`, code)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("discount %s: %w", code, domain.ErrNotFound)
	}

	return nil
}

// IncrementUsage bumps the usage counter if the coupon is still under its
// limit. It reports whether the increment was applied; a refused increment
// is not an error, callers decide how strict to be.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE discounts
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
	`, code)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// DecrementUsage lowers the usage counter, clamped at zero.
func (r *DiscountRepository) DecrementUsage(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE discounts
		SET used_count = used_count - 1, updated_at = NOW()
		WHERE code = $1 AND used_count > 0
	`, code)
	return err
}
