// Package event 领域事件
// 只在事务提交后发布，投递（邮件、推送）由外部通知系统负责
package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 事件名，同时用作消息路由键
const (
	NameOrderCreated     = "order.created"
	NameOrderCancelled   = "order.cancelled"
	NamePaymentCompleted = "payment.completed"
	NamePaymentFailed    = "payment.failed"
	NamePaymentRefunded  = "payment.refunded"
)

// Event 领域事件
type Event interface {
	Name() string
	OccurredAt() time.Time
}

// Handler 事件处理函数
type Handler func(ctx context.Context, e Event) error

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Base 公共字段
type Base struct {
	At time.Time `json:"occurred_at"`
}

func (b Base) OccurredAt() time.Time { return b.At }

// NewBase 以当前时间创建
func NewBase() Base { return Base{At: time.Now().UTC()} }

// OrderCreated 订单创建
type OrderCreated struct {
	Base
	OrderID        uint            `json:"order_id"`
	OrderCode      string          `json:"order_code"`
	UserID         uint            `json:"user_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ItemCount      int             `json:"item_count"`
}

func (OrderCreated) Name() string { return NameOrderCreated }

// OrderCancelled 订单取消（含退款后关闭）
type OrderCancelled struct {
	Base
	OrderID   uint   `json:"order_id"`
	OrderCode string `json:"order_code"`
	UserID    uint   `json:"user_id"`
	Reason    string `json:"reason"` // cancel | refund
}

func (OrderCancelled) Name() string { return NameOrderCancelled }

// PaymentCompleted 支付成功
type PaymentCompleted struct {
	Base
	PaymentID uint            `json:"payment_id"`
	OrderID   uint            `json:"order_id"`
	OrderCode string          `json:"order_code"`
	UserID    uint            `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

func (PaymentCompleted) Name() string { return NamePaymentCompleted }

// PaymentFailed 支付失败
type PaymentFailed struct {
	Base
	PaymentID uint   `json:"payment_id"`
	OrderID   uint   `json:"order_id"`
	UserID    uint   `json:"user_id"`
	Method    string `json:"method"`
}

func (PaymentFailed) Name() string { return NamePaymentFailed }

// PaymentRefunded 退款成功
type PaymentRefunded struct {
	Base
	PaymentID uint            `json:"payment_id"`
	OrderID   uint            `json:"order_id"`
	UserID    uint            `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

func (PaymentRefunded) Name() string { return NamePaymentRefunded }
