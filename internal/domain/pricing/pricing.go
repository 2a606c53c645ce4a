// Package pricing computes cart totals: subtotal, coupon discount, delivery
// fee, tax and grand total.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/coupon"
)

// ErrInvalidCart is returned when there is nothing to price.
var ErrInvalidCart = errors.New("cart is empty")

// MaxQuantity is the largest quantity of one dish on a single line.
const MaxQuantity = 99

// InvalidLineItemError indicates a line item with a negative price or a
// quantity outside 1..MaxQuantity.
type InvalidLineItemError struct {
	Index  int
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("line item %d: %s", e.Index, e.Reason)
}

// Config holds the pricing constants.
type Config struct {
	// FreeDeliveryThreshold is the subtotal above which delivery is free.
	// A subtotal exactly equal to the threshold still pays the fee.
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
	TaxRate               decimal.Decimal
	// FreeDelivery waives the delivery fee regardless of subtotal.
	FreeDelivery bool
}

// DefaultConfig returns the standard pricing: free delivery over 50,
// 5.99 fee otherwise and 8% tax.
func DefaultConfig() Config {
	return Config{
		FreeDeliveryThreshold: decimal.NewFromInt(50),
		DeliveryFee:           decimal.RequireFromString("5.99"),
		TaxRate:               decimal.RequireFromString("0.08"),
	}
}

// LineItem is one priced row of a cart.
type LineItem struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Breakdown is the result of pricing a cart. Money values are rounded to
// cents.
type Breakdown struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	ItemCount   int
	// CouponCode is the normalized code that produced the discount, or empty
	// when no coupon applied.
	CouponCode string
}

// Calculator prices carts. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	cfg     Config
	coupons *coupon.Table
}

// NewCalculator creates a Calculator with the given constants and coupon
// table. A nil table disables coupons.
func NewCalculator(cfg Config, coupons *coupon.Table) *Calculator {
	return &Calculator{cfg: cfg, coupons: coupons}
}

// Calculate prices items with an optional coupon code. Unknown coupon codes
// yield a zero discount. Intermediate values are exact; each money output is
// rounded half-up to 2 places once, at the end.
func (c *Calculator) Calculate(items []LineItem, couponCode string) (Breakdown, error) {
	if err := Validate(items); err != nil {
		return Breakdown{}, err
	}

	var (
		subtotal  = decimal.Zero
		itemCount int
	)
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		itemCount += item.Quantity
	}

	discount := decimal.Zero
	var applied string
	if couponCode != "" {
		if rule, ok := c.coupons.Lookup(couponCode); ok {
			discount = rule.Discount(subtotal)
			applied = rule.Code
		}
	}

	fee := c.cfg.DeliveryFee
	if c.cfg.FreeDelivery || subtotal.GreaterThan(c.cfg.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}

	tax := subtotal.Sub(discount).Mul(c.cfg.TaxRate)
	total := subtotal.Sub(discount).Add(fee).Add(tax)

	return Breakdown{
		Subtotal:    roundMoney(subtotal),
		Discount:    roundMoney(discount),
		DeliveryFee: roundMoney(fee),
		Tax:         roundMoney(tax),
		Total:       roundMoney(total),
		ItemCount:   itemCount,
		CouponCode:  applied,
	}, nil
}

// Validate checks that items is non-empty and every line has a
// non-negative price and a quantity in 1..MaxQuantity.
func Validate(items []LineItem) error {
	if len(items) == 0 {
		return ErrInvalidCart
	}
	for i, item := range items {
		if item.UnitPrice.IsNegative() {
			return &InvalidLineItemError{Index: i, Reason: "unit price must not be negative"}
		}
		if item.Quantity < 1 {
			return &InvalidLineItemError{Index: i, Reason: "quantity must be at least 1"}
		}
		if item.Quantity > MaxQuantity {
			return &InvalidLineItemError{Index: i, Reason: fmt.Sprintf("quantity must be at most %d", MaxQuantity)}
		}
	}
	return nil
}

// roundMoney rounds to cents. decimal.Round rounds half away from zero,
// which is half-up for the non-negative amounts priced here.
func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
