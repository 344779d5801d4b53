// Package inventory 库存台账
//
// 库存按(经销商, 商品)计数，下单路径只能通过Decrement/Increment修改数量，
// 数量永远不为负。
package inventory

import (
	"context"
	"fmt"
)

// Key 库存行的业务键
type Key struct {
	DistributorID uint
	ProductID     uint
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.DistributorID, k.ProductID)
}

// Stock 库存行
type Stock struct {
	ID            uint
	DistributorID uint
	ProductID     uint
	Quantity      int
}

// Key 业务键
func (s *Stock) Key() Key {
	return Key{DistributorID: s.DistributorID, ProductID: s.ProductID}
}

// Ledger 库存台账
// 必须在事务内调用Lock和Decrement，锁随事务提交或回滚释放
type Ledger interface {
	// Lock 排他锁定库存行（SELECT ... FOR UPDATE），不存在返回ErrStockNotFound
	Lock(ctx context.Context, key Key) (*Stock, error)

	// Decrement quantity = quantity - qty WHERE quantity >= qty
	// 返回受影响行数，0表示库存不足，调用方必须回滚事务
	Decrement(ctx context.Context, key Key, qty int) (int64, error)

	// Increment 无条件加回库存（取消、退款），行不存在时创建
	Increment(ctx context.Context, key Key, qty int) error
}
