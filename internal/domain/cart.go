package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Items          []CartItem      `json:"items"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CartItem captures the product's unit price at the time it was added;
// later catalog price changes do not affect the line.
type CartItem struct {
	CartID    string          `json:"cart_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ComputeSubtotal sums price*quantity across all lines, each line and the
// sum rounded half-up to 2 decimal places.
func (c *Cart) ComputeSubtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		subtotal = subtotal.Add(line)
	}
	return subtotal.Round(2)
}

// Recalculate refreshes subtotal, discount and total from the current
// items and coupon. The coupon snapshot may be nil when no coupon is set
// or the code no longer resolves. A coupon that has become invalid for the
// fresh subtotal is silently cleared.
func (c *Cart) Recalculate(coupon *Discount, now time.Time) {
	c.Subtotal = c.ComputeSubtotal()
	c.DiscountAmount = decimal.Zero

	if c.CouponCode != nil && coupon != nil {
		if coupon.ValidAt(now, c.Subtotal) {
			c.DiscountAmount = coupon.Amount(c.Subtotal)
		} else {
			c.CouponCode = nil
		}
	} else if c.CouponCode != nil {
		c.CouponCode = nil
	}

	total := c.Subtotal.Sub(c.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	c.TotalAmount = total.Round(2)
	c.UpdatedAt = now
}

// FindItem returns the line for a product, or nil.
func (c *Cart) FindItem(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
