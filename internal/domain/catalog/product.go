// Package catalog 商品目录（只读协作方）
// 下单时读取一次单价和所属经销商，之后不再回读
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product 下单所需的商品信息
type Product struct {
	ID            uint
	DistributorID uint
	Name          string
	Price         decimal.Decimal
	IsApproved    bool
}

// Reader 商品读取接口
type Reader interface {
	// FindByIDs 批量查询，不存在的ID不出现在结果中
	FindByIDs(ctx context.Context, ids []uint) (map[uint]*Product, error)
}
