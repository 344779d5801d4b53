package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// Status 订单状态
type Status string

const (
	StatusPending    Status = "pending"    // 待支付
	StatusProcessing Status = "processing" // 履约中（由外部履约系统写入）
	StatusCompleted  Status = "completed"  // 已完成（支付成功）
	StatusCancelled  Status = "cancelled"  // 已取消
)

// Event 订单状态事件
type Event string

const (
	EventProcess  Event = "process"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
	// EventRefund 退款成功后关闭已完成订单，已完成订单不能直接取消
	EventRefund Event = "refund"
)

// transitions 合法的状态流转，未列出的组合一律拒绝
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventProcess:  StatusProcessing,
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
	},
	StatusProcessing: {
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
	},
	StatusCompleted: {
		EventRefund: StatusCancelled,
	},
}

// Order 订单（聚合根）
// TotalAmount不落库，由明细和优惠金额推导
type Order struct {
	ID             uint
	Code           string // 业务单号 ORDER-XXXXXXXX
	UserID         uint
	Status         Status
	DiscountID     *uint
	DiscountAmount decimal.Decimal
	Items          []Item
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item 订单明细
// Price是下单时的单价快照，创建后不再变化
type Item struct {
	ID            uint
	OrderID       uint
	ProductID     uint
	DistributorID uint
	ProductName   string
	Quantity      int
	Price         decimal.Decimal
}

// Amount 行金额
func (i Item) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrder 创建待支付订单
func NewOrder(code string, userID uint, items []Item, discountID *uint, discountAmount decimal.Decimal) *Order {
	now := time.Now()
	return &Order{
		Code:           code,
		UserID:         userID,
		Status:         StatusPending,
		DiscountID:     discountID,
		DiscountAmount: discountAmount.Round(2),
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Subtotal Σ 数量×单价
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Amount())
	}
	return total.Round(2)
}

// TotalAmount max(0, 小计 - 优惠金额)
func (o *Order) TotalAmount() decimal.Decimal {
	total := o.Subtotal().Sub(o.DiscountAmount)
	if total.Sign() < 0 {
		return decimal.Zero
	}
	return total.Round(2)
}

// IsOwnedBy 检查订单是否属于指定用户
func (o *Order) IsOwnedBy(userID uint) bool {
	return o.UserID == userID
}

// Next 查询事件对应的目标状态
func Next(from Status, event Event) (Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return "", &apperrors.InvalidTransitionError{Entity: "order", From: string(from), Event: string(event)}
}

// Apply 执行状态流转
func (o *Order) Apply(event Event) error {
	to, err := Next(o.Status, event)
	if err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

// CanCancel 待支付、履约中的订单可直接取消
func (o *Order) CanCancel() bool {
	_, err := Next(o.Status, EventCancel)
	return err == nil
}

// RestockLines 取消、退款时需要加回的库存
func (o *Order) RestockLines() []inventory.RestockLine {
	lines := make([]inventory.RestockLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, inventory.RestockLine{
			Key:      inventory.Key{DistributorID: item.DistributorID, ProductID: item.ProductID},
			Quantity: item.Quantity,
		})
	}
	return lines
}
