package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// Resolver 把购物车读成不可变快照，不做任何写入
type Resolver struct {
	carts   Repository
	catalog catalog.Reader
}

// NewResolver 创建快照解析器
func NewResolver(carts Repository, products catalog.Reader) *Resolver {
	return &Resolver{carts: carts, catalog: products}
}

// Resolve 解析购物车
//
// 错误：
//   - 购物车不存在 → ErrCartNotFound
//   - 不属于requesterID → ErrNotOwner
//   - 没有条目 → ErrEmptyCart
//   - 数量<=0、商品未上架 → 参数错误
//   - 商品不存在 → 商品不存在
//
// 同一商品的多条记录合并为一行，结果按商品ID升序
func (r *Resolver) Resolve(ctx context.Context, cartID, requesterID uint) (Snapshot, error) {
	c, err := r.carts.FindByID(ctx, cartID)
	if err != nil {
		return Snapshot{}, err
	}
	if !c.IsOwnedBy(requesterID) {
		return Snapshot{}, ErrNotOwner
	}
	if len(c.Items) == 0 {
		return Snapshot{}, ErrEmptyCart
	}

	quantities := make(map[uint]int, len(c.Items))
	ids := make([]uint, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return Snapshot{}, apperrors.New(apperrors.ErrCodeInvalidParams,
				fmt.Sprintf("商品%d的购买数量必须大于0", item.ProductID))
		}
		if _, seen := quantities[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := r.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return Snapshot{}, err
	}

	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return Snapshot{}, apperrors.New(apperrors.ErrCodeProductNotFound,
				fmt.Sprintf("商品%d不存在", id))
		}
		if !p.IsApproved {
			return Snapshot{}, apperrors.New(apperrors.ErrCodeInvalidParams,
				fmt.Sprintf("商品%s暂不可购买", p.Name))
		}
		lines = append(lines, Line{
			ProductID:     p.ID,
			DistributorID: p.DistributorID,
			ProductName:   p.Name,
			UnitPrice:     p.Price.Round(2),
			Quantity:      quantities[id],
		})
	}

	return NewSnapshot(c.ID, c.UserID, lines, c.Items), nil
}
