package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDiscount_ValidAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	base := Discount{
		Code:     "TEST",
		Type:     DiscountTypePercentage,
		Value:    decimal.NewFromInt(10),
		Active:   true,
		StartsAt: now.Add(-24 * time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	}

	amount := dec("100.00")

	t.Run("valid inside window", func(t *testing.T) {
		d := base
		if !d.ValidAt(now, amount) {
			t.Error("expected valid")
		}
	})

	t.Run("start is inclusive", func(t *testing.T) {
		d := base
		if !d.ValidAt(d.StartsAt, amount) {
			t.Error("expected valid at exact start")
		}
	})

	t.Run("end is exclusive", func(t *testing.T) {
		d := base
		if d.ValidAt(d.EndsAt, amount) {
			t.Error("expected invalid at exact end")
		}
	})

	t.Run("inactive", func(t *testing.T) {
		d := base
		d.Active = false
		if d.ValidAt(now, amount) {
			t.Error("expected invalid when inactive")
		}
	})

	t.Run("usage limit reached", func(t *testing.T) {
		limit := 3
		d := base
		d.UsageLimit = &limit
		d.UsedCount = 3
		if d.ValidAt(now, amount) {
			t.Error("expected invalid at limit")
		}

		d.UsedCount = 2
		if !d.ValidAt(now, amount) {
			t.Error("expected valid below limit")
		}
	})

	t.Run("minimum order amount", func(t *testing.T) {
		min := dec("50.00")
		d := base
		d.MinOrderAmount = &min

		if d.ValidAt(now, dec("49.99")) {
			t.Error("expected invalid below minimum")
		}
		if !d.ValidAt(now, dec("50.00")) {
			t.Error("expected valid at exact minimum")
		}
	})
}

func TestDiscount_Amount(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		d := Discount{Type: DiscountTypePercentage, Value: decimal.NewFromInt(10)}
		if got := d.Amount(dec("25.00")); !got.Equal(dec("2.50")) {
			t.Errorf("expected 2.50, got %s", got)
		}
	})

	t.Run("percentage rounds half up", func(t *testing.T) {
		d := Discount{Type: DiscountTypePercentage, Value: decimal.NewFromInt(15)}
		if got := d.Amount(dec("10.03")); !got.Equal(dec("1.50")) {
			t.Errorf("expected 1.50, got %s", got)
		}
	})

	t.Run("fixed amount", func(t *testing.T) {
		d := Discount{Type: DiscountTypeFixedAmount, Value: decimal.NewFromInt(5)}
		if got := d.Amount(dec("25.00")); !got.Equal(dec("5.00")) {
			t.Errorf("expected 5.00, got %s", got)
		}
	})

	t.Run("never exceeds subtotal", func(t *testing.T) {
		d := Discount{Type: DiscountTypeFixedAmount, Value: decimal.NewFromInt(50)}
		if got := d.Amount(dec("19.99")); !got.Equal(dec("19.99")) {
			t.Errorf("expected clamp to 19.99, got %s", got)
		}
	})
}
