package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

// Sandbox 本地联调用的假网关，不产生真实扣款
// 默认所有支付直接视为已支付，可通过Settle指定单笔结果
type Sandbox struct {
	mu       sync.Mutex
	fallback payment.ConfirmStatus
	results  map[string]payment.ConfirmStatus
	refunded map[string]bool
}

// NewSandbox 创建假网关
func NewSandbox(fallback payment.ConfirmStatus) *Sandbox {
	if fallback == "" {
		fallback = payment.ConfirmPaid
	}
	return &Sandbox{
		fallback: fallback,
		results:  make(map[string]payment.ConfirmStatus),
		refunded: make(map[string]bool),
	}
}

func (s *Sandbox) Provider() string { return string(payment.MethodSandbox) }

func (s *Sandbox) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	if !req.Amount.IsPositive() {
		return nil, &ResponseError{Provider: s.Provider(), Code: "invalid_amount", Message: "金额必须大于0"}
	}
	ref := "sb_" + req.TransactionID
	return &payment.CheckoutSession{
		CheckoutURL: fmt.Sprintf("https://sandbox.pharmatech.local/checkout/%s?amount=%s", ref, req.Amount.StringFixed(2)),
		ExternalRef: ref,
	}, nil
}

func (s *Sandbox) Confirm(_ context.Context, externalRef string) (payment.ConfirmStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.results[externalRef]; ok {
		return status, nil
	}
	return s.fallback, nil
}

func (s *Sandbox) Refund(_ context.Context, externalRef string, _ decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refunded[externalRef] {
		return &ResponseError{Provider: s.Provider(), Code: "already_refunded", Message: externalRef}
	}
	s.refunded[externalRef] = true
	return nil
}

// Settle 指定某笔支付的结果
func (s *Sandbox) Settle(externalRef string, status payment.ConfirmStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[externalRef] = status
}
