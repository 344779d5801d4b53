package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate 校验优惠码对给定小计是否可用
// 检查顺序：配置 → 启用 → 生效窗口 → 使用次数 → 最低消费
func Validate(d *Discount, subtotal decimal.Decimal, now time.Time) error {
	if d.Value.Sign() <= 0 || (d.Type != TypePercentage && d.Type != TypeFixed) {
		return Invalid(d.Code, ReasonInvalidValue)
	}
	if d.Type == TypePercentage && d.Value.GreaterThan(hundred) {
		return Invalid(d.Code, ReasonInvalidValue)
	}
	if !d.IsActive {
		return Invalid(d.Code, ReasonInactive)
	}
	if now.Before(d.StartAt) {
		return Invalid(d.Code, ReasonNotStarted)
	}
	if now.After(d.EndAt) {
		return Invalid(d.Code, ReasonExpired)
	}
	if d.MaxUses != nil && d.UsesCount >= *d.MaxUses {
		return Invalid(d.Code, ReasonExhausted)
	}
	if d.MinOrderValue != nil && subtotal.LessThan(*d.MinOrderValue) {
		return Invalid(d.Code, ReasonBelowMinimum)
	}
	return nil
}

// ComputeAmount 计算优惠金额
//   - percentage：subtotal × value / 100，四舍五入到分，不超过max_discount_amount
//   - fixed：value
//
// 两种类型都不超过subtotal，保证 0 <= 优惠金额 <= 小计
func ComputeAmount(d *Discount, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case TypePercentage:
		amount = subtotal.Mul(d.Value).Div(hundred).Round(2)
		if d.MaxDiscountAmount != nil && amount.GreaterThan(*d.MaxDiscountAmount) {
			amount = *d.MaxDiscountAmount
		}
	case TypeFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}

	if amount.Sign() < 0 {
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal).Round(2)
}
