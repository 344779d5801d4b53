package order

import (
	"context"
)

// Repository 订单仓储
// 事务通过context传递
type Repository interface {
	// Create 创建订单及明细，订单号冲突返回ErrDuplicateCode
	Create(ctx context.Context, order *Order) error

	// FindByID 查询订单（含明细）
	FindByID(ctx context.Context, id uint) (*Order, error)

	// FindByCode 按订单号查询（含明细）
	FindByCode(ctx context.Context, code string) (*Order, error)

	// LockByCode SELECT ... FOR UPDATE 锁定订单行（含明细），必须在事务内调用
	LockByCode(ctx context.Context, code string) (*Order, error)

	// UpdateStatus 只更新status和updated_at
	UpdateStatus(ctx context.Context, order *Order) error

	// Delete 删除订单及明细（结算补偿）
	Delete(ctx context.Context, id uint) error

	// ListByUserID 分页查询用户订单
	ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*Order, int64, error)
}
