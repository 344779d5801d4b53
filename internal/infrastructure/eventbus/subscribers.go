package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
)

// MessagePublisher 消息队列发布接口（pkg/mq.Publisher实现）
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
}

// Forwarder 把事件转发到消息队列，路由键为事件名
func Forwarder(mq MessagePublisher) event.Handler {
	return func(ctx context.Context, e event.Event) error {
		if err := mq.Publish(ctx, e.Name(), e); err != nil {
			return err
		}
		metrics.RecordEventPublished(e.Name(), "mq")
		return nil
	}
}

// AuditLog 事件审计日志
func AuditLog(ctx context.Context, e event.Event) error {
	logger.FromContext(ctx).Info("domain_event",
		zap.String("event", e.Name()),
		zap.Time("occurred_at", e.OccurredAt()),
		zap.Any("payload", e),
	)
	return nil
}
