// Package payment 支付状态机
//
// 状态流转只能经过Transition，未列出的(状态, 事件)组合一律拒绝：
//
//	pending   --confirm_paid-->   completed
//	completed --confirm_paid-->   completed（幂等，无副作用）
//	pending   --confirm_failed--> failed
//	completed --refund-->         refunded
//	failed    --retry-->          pending（重新发起支付）
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// Status 支付状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusFailed    Status = "failed"
)

// Method 支付渠道
type Method string

const (
	MethodVNPay   Method = "vnpay"
	MethodMoMo    Method = "momo"
	MethodStripe  Method = "stripe"
	MethodSandbox Method = "sandbox"
)

// Valid 是否为已知渠道
func (m Method) Valid() bool {
	switch m {
	case MethodVNPay, MethodMoMo, MethodStripe, MethodSandbox:
		return true
	}
	return false
}

// Event 支付事件
type Event string

const (
	EventConfirmPaid   Event = "confirm_paid"
	EventConfirmFailed Event = "confirm_failed"
	EventRefund        Event = "refund"
	EventRetry         Event = "retry"
)

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventConfirmPaid:   StatusCompleted,
		EventConfirmFailed: StatusFailed,
	},
	StatusCompleted: {
		EventConfirmPaid: StatusCompleted,
		EventRefund:      StatusRefunded,
	},
	StatusFailed: {
		EventRetry: StatusPending,
	},
}

// Transition 查表得到目标状态
func Transition(from Status, event Event) (Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return "", &apperrors.InvalidTransitionError{Entity: "payment", From: string(from), Event: string(event)}
}

// Payment 支付记录，与订单一对一
type Payment struct {
	ID            uint
	OrderID       uint
	UserID        uint
	Amount        decimal.Decimal
	Method        Method
	Status        Status
	TransactionID string // 本地交易号，发给网关的商户单号
	ExternalRef   string // 网关侧引用（VNPay TxnRef、Stripe会话ID等）
	CheckoutURL   string
	PaidAt        *time.Time
	RefundedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Apply 执行状态流转并打时间戳
// 返回是否真的发生了变化（completed重复确认返回false）
func (p *Payment) Apply(event Event, now time.Time) (bool, error) {
	to, err := Transition(p.Status, event)
	if err != nil {
		return false, err
	}
	if to == p.Status {
		return false, nil
	}

	p.Status = to
	p.UpdatedAt = now
	switch to {
	case StatusCompleted:
		p.PaidAt = &now
	case StatusRefunded:
		p.RefundedAt = &now
	case StatusPending:
		p.PaidAt = nil
		p.CheckoutURL = ""
		p.ExternalRef = ""
	}
	return true, nil
}

// IsOwnedBy 检查支付是否属于指定用户
func (p *Payment) IsOwnedBy(userID uint) bool {
	return p.UserID == userID
}

// Repository 支付仓储
type Repository interface {
	// Create 插入支付记录，order_id唯一，冲突返回DuplicatePaymentError
	Create(ctx context.Context, p *Payment) error

	FindByID(ctx context.Context, id uint) (*Payment, error)

	// FindByOrderID 不存在返回ErrPaymentNotFound
	FindByOrderID(ctx context.Context, orderID uint) (*Payment, error)

	// FindByTransactionID 按本地交易号查询（网关回调）
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// LockByID SELECT ... FOR UPDATE，必须在事务内调用
	LockByID(ctx context.Context, id uint) (*Payment, error)

	// Update 更新状态、时间戳、网关引用
	Update(ctx context.Context, p *Payment) error
}

// PendingTracker 待确认支付的对账队列
type PendingTracker interface {
	// Track 在due时间后需要对账
	Track(ctx context.Context, paymentID uint, due time.Time) error

	// Untrack 支付已有终态
	Untrack(ctx context.Context, paymentID uint) error

	// Due 取出到期的支付ID，最多limit个
	Due(ctx context.Context, now time.Time, limit int) ([]uint, error)
}
