package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

var hundred = decimal.NewFromInt(100)

type Discount struct {
	Code           string           `json:"code"`
	Type           DiscountType     `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartsAt       time.Time        `json:"starts_at"`
	EndsAt         time.Time        `json:"ends_at"`
	UsageLimit     *int             `json:"usage_limit,omitempty"`
	UsedCount      int              `json:"used_count"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ValidAt reports whether the coupon may be applied to an order of the
// given amount at the given instant. The validity window is inclusive of
// the start and exclusive of the end.
func (d *Discount) ValidAt(now time.Time, amount decimal.Decimal) bool {
	if !d.Active {
		return false
	}
	if now.Before(d.StartsAt) || !now.Before(d.EndsAt) {
		return false
	}
	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return false
	}
	if d.MinOrderAmount != nil && amount.LessThan(*d.MinOrderAmount) {
		return false
	}
	return true
}

// Amount computes the discount against a subtotal. Percentage discounts
// round the rate to 2 decimal places before multiplying, matching the
// cumulative rounding of the totals pipeline. The result never exceeds the
// subtotal.
func (d *Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountTypePercentage:
		amount = subtotal.Mul(d.Value.Div(hundred).Round(2))
	case DiscountTypeFixedAmount:
		amount = d.Value
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return amount.Round(2)
}
