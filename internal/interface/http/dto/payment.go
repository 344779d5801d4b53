package dto

import (
	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

// CreatePaymentRequest 为已有订单发起（或重新发起）支付
type CreatePaymentRequest struct {
	OrderCode     string `json:"order_code" binding:"required,max=32" example:"ORDER-1A2B3C4D"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=vnpay momo stripe sandbox" example:"vnpay"`
}

// PaymentResponse 支付详情
type PaymentResponse struct {
	ID            uint            `json:"id" example:"1"`
	OrderID       uint            `json:"order_id" example:"1"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"270.00"`
	Method        string          `json:"method" example:"vnpay"`
	Status        string          `json:"status" example:"pending"`
	TransactionID string          `json:"transaction_id" example:"6f1c2b9e-2a4d-4c53-9a57-0d6f1f0f7f3e"`
	CheckoutURL   string          `json:"checkout_url,omitempty" example:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?..."`
	PaidAt        string          `json:"paid_at,omitempty" example:"2026-03-01 12:05:00"`
	RefundedAt    string          `json:"refunded_at,omitempty"`
	CreatedAt     string          `json:"created_at" example:"2026-03-01 12:00:00"`
}

// NewPaymentResponse 领域支付 → 响应
// 网关侧引用（ExternalRef）不对外暴露
func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		CheckoutURL:   p.CheckoutURL,
		PaidAt:        formatTimePtr(p.PaidAt),
		RefundedAt:    formatTimePtr(p.RefundedAt),
		CreatedAt:     formatTime(p.CreatedAt),
	}
}

// VNPayReturnResponse VNPay回跳结果
type VNPayReturnResponse struct {
	TxnRef       string `json:"txn_ref"`
	ResponseCode string `json:"response_code" example:"00"`
	Status       string `json:"status" example:"completed"`
}
