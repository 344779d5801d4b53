package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/metrics"
)

// ReconcilerOptions 对账参数
type ReconcilerOptions struct {
	Interval   time.Duration // 轮询间隔
	BatchSize  int
	RetryDelay time.Duration // 仍为pending或网关出错时，下次对账的延迟
}

// Reconciler 轮询待确认的支付
// 没有回调的渠道、确认时网关超时的支付都靠它收敛到终态
type Reconciler struct {
	tracker payment.PendingTracker
	confirm *ConfirmPaymentUseCase
	opts    ReconcilerOptions
	log     *zap.Logger
}

// NewReconciler 创建对账任务
func NewReconciler(tracker payment.PendingTracker, confirm *ConfirmPaymentUseCase, opts ReconcilerOptions, log *zap.Logger) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		tracker: tracker,
		confirm: confirm,
		opts:    opts,
		log:     log.With(zap.String("component", "reconciler")),
	}
}

// Run 阻塞直到ctx取消
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.log.Info("reconciler_started", zap.Duration("interval", r.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler_stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Warn("reconcile_batch_failed", zap.Error(err))
			}
		}
	}
}

// RunOnce 处理一批到期的支付，返回处理数量
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()
	ids, err := r.tracker.Due(ctx, now, r.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p, err := r.confirm.Execute(ctx, ConfirmPaymentRequest{PaymentID: id})
		outcome := r.outcome(p, err)
		metrics.RecordReconcile(outcome)

		switch outcome {
		case "pending", "retry":
			if err := r.tracker.Track(ctx, id, now.Add(r.opts.RetryDelay)); err != nil {
				r.log.Warn("reconcile_retrack_failed", zap.Uint("payment_id", id), zap.Error(err))
			}
		default:
			if err := r.tracker.Untrack(ctx, id); err != nil {
				r.log.Warn("reconcile_untrack_failed", zap.Uint("payment_id", id), zap.Error(err))
			}
		}
		r.log.Debug("payment_reconciled", zap.Uint("payment_id", id), zap.String("outcome", outcome), zap.Error(err))
	}
	return len(ids), nil
}

func (r *Reconciler) outcome(p *payment.Payment, err error) string {
	switch {
	case err != nil && apperrors.IsRetryable(err):
		return "retry"
	case err != nil:
		// 不存在、状态不允许确认等，不再重试
		return "dropped"
	case p.Status == payment.StatusPending:
		return "pending"
	default:
		return string(p.Status)
	}
}
