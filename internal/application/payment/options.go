// Package payment 支付用例：发起、确认、退款、对账
//
// 网关调用一律在事务之外进行，并带有超时；
// 超时的支付保持pending，由对账任务稍后重新查询，不猜测结果。
package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/pkg/logger"
)

// Options 支付用例参数
type Options struct {
	GatewayTimeout time.Duration // 单次网关调用超时
	ReconcileAfter time.Duration // 发起支付后多久开始对账
	RefundLockTTL  time.Duration
	ReturnURL      string
}

func (o Options) withDefaults() Options {
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 10 * time.Second
	}
	if o.ReconcileAfter <= 0 {
		o.ReconcileAfter = time.Minute
	}
	if o.RefundLockTTL <= 0 {
		o.RefundLockTTL = 2 * time.Minute
	}
	return o
}

// Locker 分布式锁（Redis SETNX），防止同一笔支付被并发退款
type Locker interface {
	// TryLock 已被持有时返回ok=false
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

func refundLockKey(paymentID uint) string {
	return fmt.Sprintf("payment:refund:%d", paymentID)
}

// callGateway 带超时调用网关，错误统一包装为GatewayError
func callGateway(ctx context.Context, timeout time.Duration, gw payment.Gateway, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return payment.NewGatewayError(gw.Provider(), op, err)
	}
	return nil
}

// publish 事务提交后发布事件，失败只记录日志
func publish(ctx context.Context, pub event.Publisher, log *zap.Logger, events ...event.Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(context.WithoutCancel(ctx), events...); err != nil {
		logger.FromContextOr(ctx, log).Warn("event_publish_failed", zap.Error(err))
	}
}
