// Package order 下单、结算、取消、查询用例
package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/pkg/logger"
)

// Options 订单用例参数
type Options struct {
	LockTimeout     time.Duration // 下单事务的总时限，包括等待行锁
	CodeAttempts    int           // 订单号冲突时的最大尝试次数
	CheckoutTimeout time.Duration // 下单+发起支付整体时限
	IdempotencyTTL  time.Duration
}

func (o Options) withDefaults() Options {
	if o.LockTimeout <= 0 {
		o.LockTimeout = 5 * time.Second
	}
	if o.CodeAttempts <= 0 {
		o.CodeAttempts = 5
	}
	if o.CheckoutTimeout <= 0 {
		o.CheckoutTimeout = 30 * time.Second
	}
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = 24 * time.Hour
	}
	return o
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
