package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
	"github.com/FongFus/Pharmatech/pkg/circuitbreaker"
	"github.com/FongFus/Pharmatech/pkg/metrics"
)

// Guard 网关装饰器：熔断 + 调用指标
// 网关连续失败时快速失败，避免请求堆积在超时上
type Guard struct {
	next payment.Gateway
	cb   *circuitbreaker.CircuitBreaker
	log  *zap.Logger
}

// NewGuard 为网关包一层熔断器
func NewGuard(next payment.Gateway, cfg config.CircuitBreakerConfig, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	name := "gateway_" + next.Provider()
	cb := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isHealthy,
	})
	cb.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		metrics.RecordCircuitBreakerState(name, int(to))
		log.Warn("circuit_breaker_state_changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	metrics.RecordCircuitBreakerState(name, int(cb.State()))

	return &Guard{next: next, cb: cb, log: log}
}

// isHealthy 网关业务错误和调用方主动取消不算网关故障
func isHealthy(err error) bool {
	var respErr *ResponseError
	return err == nil || errors.As(err, &respErr) || errors.Is(err, context.Canceled)
}

func (g *Guard) Provider() string { return g.next.Provider() }

// State 当前熔断状态
func (g *Guard) State() circuitbreaker.State { return g.cb.State() }

func (g *Guard) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	var sess *payment.CheckoutSession
	err := g.call(ctx, "create_checkout", func() error {
		var err error
		sess, err = g.next.CreateCheckout(ctx, req)
		return err
	})
	return sess, err
}

func (g *Guard) Confirm(ctx context.Context, externalRef string) (payment.ConfirmStatus, error) {
	var status payment.ConfirmStatus
	err := g.call(ctx, "confirm", func() error {
		var err error
		status, err = g.next.Confirm(ctx, externalRef)
		return err
	})
	return status, err
}

func (g *Guard) Refund(ctx context.Context, externalRef string, amount decimal.Decimal) error {
	return g.call(ctx, "refund", func() error {
		return g.next.Refund(ctx, externalRef, amount)
	})
}

func (g *Guard) call(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := g.cb.Execute(fn)
	metrics.RecordGatewayCall(g.Provider(), op, callResult(ctx, err), time.Since(start))
	return err
}

func callResult(ctx context.Context, err error) string {
	var respErr *ResponseError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, circuitbreaker.ErrOpenState):
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &respErr):
		return "declined"
	default:
		return "error"
	}
}
