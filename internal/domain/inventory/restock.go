package inventory

import (
	"context"
	"sort"
)

// RestockLine 一条加回库存的明细
type RestockLine struct {
	Key      Key
	Quantity int
}

// Restock 按商品ID升序加回库存，与下单加锁顺序一致
func Restock(ctx context.Context, ledger Ledger, lines []RestockLine) error {
	sorted := append([]RestockLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i].Key, sorted[j].Key) })
	for _, l := range sorted {
		if l.Quantity <= 0 {
			continue
		}
		if err := ledger.Increment(ctx, l.Key, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Less 全局加锁顺序：商品ID升序，同商品按经销商ID
func Less(a, b Key) bool {
	if a.ProductID != b.ProductID {
		return a.ProductID < b.ProductID
	}
	return a.DistributorID < b.DistributorID
}
