package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// ConfirmStatus 网关侧支付结果
type ConfirmStatus string

const (
	ConfirmPaid    ConfirmStatus = "paid"
	ConfirmPending ConfirmStatus = "pending"
	ConfirmFailed  ConfirmStatus = "failed"
)

// CheckoutRequest 发起支付所需信息
type CheckoutRequest struct {
	OrderCode     string
	TransactionID string
	Amount        decimal.Decimal
	Description   string
	ClientIP      string
	ReturnURL     string
}

// CheckoutSession 网关返回的支付会话
type CheckoutSession struct {
	CheckoutURL string
	ExternalRef string
}

// Gateway 支付网关适配器
// 进程启动时构造一次并注入，不使用全局状态；实现必须遵守ctx的超时
type Gateway interface {
	// Provider 渠道名称（日志、指标）
	Provider() string

	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	Confirm(ctx context.Context, externalRef string) (ConfirmStatus, error)

	Refund(ctx context.Context, externalRef string, amount decimal.Decimal) error
}

// GatewayResolver 按支付渠道取网关
type GatewayResolver interface {
	Gateway(method Method) (Gateway, error)
	// Default 未指定渠道时使用
	Default() Method
}
