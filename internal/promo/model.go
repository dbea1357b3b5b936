package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type PromoCode struct {
	ID             int             `db:"id" json:"id"`
	Code           string          `db:"code" json:"code"`
	DiscountType   string          `db:"discount_type" json:"discount_type"`
	DiscountValue  decimal.Decimal `db:"discount_value" json:"discount_value"`
	MinOrderAmount decimal.Decimal `db:"min_order_amount" json:"min_order_amount"`
	MaxUses        int             `db:"max_uses" json:"max_uses"` // 0 = unlimited
	CurrentUses    int             `db:"current_uses" json:"current_uses"`
	ValidFrom      time.Time       `db:"valid_from" json:"valid_from"`
	ValidTo        time.Time       `db:"valid_to" json:"valid_to"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// IsValid reports whether the code can be applied at the given time.
func (p *PromoCode) IsValid(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidTo) {
		return false
	}
	if p.MaxUses > 0 && p.CurrentUses >= p.MaxUses {
		return false
	}
	return true
}

// Discount returns the discount for the order total: zero below the minimum
// order amount, a cent-rounded percentage, or a fixed amount capped at the
// order total.
func (p *PromoCode) Discount(orderAmount decimal.Decimal) decimal.Decimal {
	if orderAmount.LessThan(p.MinOrderAmount) {
		return decimal.Zero
	}
	if p.DiscountType == DiscountPercentage {
		return p.DiscountValue.Div(decimal.NewFromInt(100)).Mul(orderAmount).Round(2)
	}
	if p.DiscountValue.GreaterThan(orderAmount) {
		return orderAmount
	}
	return p.DiscountValue
}
