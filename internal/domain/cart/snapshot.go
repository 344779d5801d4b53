package cart

import (
	"github.com/shopspring/decimal"
)

// Line 快照行：下单时的单价、数量、所属经销商
type Line struct {
	ProductID     uint
	DistributorID uint
	ProductName   string
	UnitPrice     decimal.Decimal
	Quantity      int
}

// Amount 行金额
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot 购物车快照，创建后不可变
type Snapshot struct {
	cartID uint
	userID uint
	lines  []Line
	items  []Item
}

// NewSnapshot 按传入顺序保存行，内部持有副本
func NewSnapshot(cartID, userID uint, lines []Line, items []Item) Snapshot {
	s := Snapshot{cartID: cartID, userID: userID}
	s.lines = append([]Line(nil), lines...)
	s.items = append([]Item(nil), items...)
	return s
}

func (s Snapshot) CartID() uint { return s.cartID }
func (s Snapshot) UserID() uint { return s.userID }

// Lines 返回副本
func (s Snapshot) Lines() []Line {
	return append([]Line(nil), s.lines...)
}

// Items 原始购物车条目副本（补偿时恢复购物车用）
func (s Snapshot) Items() []Item {
	return append([]Item(nil), s.items...)
}

// Len 行数
func (s Snapshot) Len() int {
	return len(s.lines)
}

// Subtotal Σ 数量×单价，保留两位小数
func (s Snapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Amount())
	}
	return total.Round(2)
}
