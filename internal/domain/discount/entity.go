// Package discount 优惠码
//
// Validate和ComputeAmount是纯函数，不做I/O；
// 使用次数的保护性自增由仓储在下单事务内完成。
package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type 优惠类型
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Discount 优惠码
type Discount struct {
	ID                uint
	Code              string
	Type              Type
	Value             decimal.Decimal
	MaxDiscountAmount *decimal.Decimal // 百分比折扣的上限
	MinOrderValue     *decimal.Decimal
	StartAt           time.Time
	EndAt             time.Time
	MaxUses           *int // nil表示不限次数
	UsesCount         int
	IsActive          bool
}

// HasCap 是否设置了使用上限
func (d *Discount) HasCap() bool {
	return d.MaxUses != nil
}

// Repository 优惠码仓储
type Repository interface {
	// FindByCode 不存在返回ErrDiscountNotFound
	FindByCode(ctx context.Context, code string) (*Discount, error)

	// IncrementUsage uses_count = uses_count + 1 WHERE max_uses IS NULL OR uses_count < max_uses
	// 返回受影响行数，0表示次数已用完
	IncrementUsage(ctx context.Context, id uint) (int64, error)

	// DecrementUsage 结算补偿时归还一次使用次数（不低于0）
	DecrementUsage(ctx context.Context, id uint) error
}
