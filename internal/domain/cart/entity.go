package cart

import (
	"context"
	"time"
)

// Cart 购物车（顾客所有，下单前可变）
type Cart struct {
	ID        uint
	UserID    uint
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item 购物车条目
type Item struct {
	ID        uint
	CartID    uint
	ProductID uint
	Quantity  int
}

// IsOwnedBy 检查购物车是否属于指定用户
func (c *Cart) IsOwnedBy(userID uint) bool {
	return c.UserID == userID
}

// Repository 购物车仓储
type Repository interface {
	// FindByID 查询购物车及条目，不存在返回ErrCartNotFound
	FindByID(ctx context.Context, id uint) (*Cart, error)

	// ClearItems 清空条目（下单事务内调用）
	ClearItems(ctx context.Context, cartID uint) error

	// RestoreItems 恢复条目（结算补偿）
	RestoreItems(ctx context.Context, cartID uint, items []Item) error
}
