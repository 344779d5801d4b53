package payment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/domain/transaction"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

// RefundPaymentUseCase 退款
type RefundPaymentUseCase struct {
	tx       transaction.Manager
	orders   order.Repository
	payments payment.Repository
	ledger   inventory.Ledger
	gateways payment.GatewayResolver
	locker   Locker
	events   event.Publisher
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// NewRefundPaymentUseCase 创建退款用例
func NewRefundPaymentUseCase(
	tx transaction.Manager,
	orders order.Repository,
	payments payment.Repository,
	ledger inventory.Ledger,
	gateways payment.GatewayResolver,
	locker Locker,
	events event.Publisher,
	opts Options,
	log *zap.Logger,
) *RefundPaymentUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefundPaymentUseCase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		ledger:   ledger,
		gateways: gateways,
		locker:   locker,
		events:   events,
		opts:     opts.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// RefundPaymentRequest 退款请求
type RefundPaymentRequest struct {
	PaymentID uint
	UserID    uint // 0表示系统调用
}

// Execute 退款
//
//  1. 支付必须是completed
//  2. 按支付ID加锁，同一笔支付同时只有一个退款在调用网关
//  3. 事务外调用网关退款，失败返回GatewayError，本地不做任何修改
//  4. 事务内：payment→refunded，所有明细加回库存，order→cancelled
func (uc *RefundPaymentUseCase) Execute(ctx context.Context, req RefundPaymentRequest) (p *payment.Payment, err error) {
	ctx, span := tracing.StartSpan(ctx, "payment.refund", attribute.Int64("payment_id", int64(req.PaymentID)))
	defer func() { tracing.EndSpan(span, err) }()

	p, err = uc.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if req.UserID != 0 && !p.IsOwnedBy(req.UserID) {
		return nil, payment.ErrNotOwner
	}
	if _, err := payment.Transition(p.Status, payment.EventRefund); err != nil {
		return nil, err
	}

	key := refundLockKey(p.ID)
	token, ok, err := uc.locker.TryLock(ctx, key, uc.opts.RefundLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, payment.ErrRefundInProgress
	}
	defer func() {
		if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			logger.FromContextOr(ctx, uc.log).Warn("refund_unlock_failed", zap.String("key", key), zap.Error(err))
		}
	}()

	// 拿到锁后重新读取，前一个退款可能刚刚完成
	p, err = uc.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if _, err := payment.Transition(p.Status, payment.EventRefund); err != nil {
		return nil, err
	}

	gw, err := uc.gateways.Gateway(p.Method)
	if err != nil {
		return nil, err
	}
	err = callGateway(ctx, uc.opts.GatewayTimeout, gw, "refund", func(ctx context.Context) error {
		return gw.Refund(ctx, p.ExternalRef, p.Amount)
	})
	if err != nil {
		logger.FromContextOr(ctx, uc.log).Warn("payment_refund_gateway_error",
			zap.Uint("payment_id", p.ID),
			zap.String("provider", gw.Provider()),
			zap.Error(err),
		)
		return nil, err
	}

	var o *order.Order
	err = uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.payments.LockByID(txCtx, p.ID)
		if err != nil {
			return err
		}
		if _, err := locked.Apply(payment.EventRefund, uc.now()); err != nil {
			return err
		}
		if err := uc.payments.Update(txCtx, locked); err != nil {
			return err
		}
		p = locked

		o, err = uc.orders.FindByID(txCtx, locked.OrderID)
		if err != nil {
			return err
		}
		o, err = uc.orders.LockByCode(txCtx, o.Code)
		if err != nil {
			return err
		}
		// 已完成订单走refund；待支付、履约中的订单在取消时发现已付款，直接取消
		ev := order.EventRefund
		if o.Status != order.StatusCompleted {
			ev = order.EventCancel
		}
		if err := o.Apply(ev); err != nil {
			return err
		}
		if err := inventory.Restock(txCtx, uc.ledger, o.RestockLines()); err != nil {
			return err
		}
		return uc.orders.UpdateStatus(txCtx, o)
	})
	if err != nil {
		// 网关已退款但本地未落库，需要人工核对
		logger.FromContextOr(ctx, uc.log).Error("payment_refund_commit_failed",
			zap.Uint("payment_id", p.ID),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RecordPaymentTransition(string(p.Method), string(p.Status))
	metrics.RecordOrderCancelled()
	logger.FromContextOr(ctx, uc.log).Info("payment_refunded",
		zap.Uint("payment_id", p.ID),
		zap.String("order_code", o.Code),
		zap.String("amount", p.Amount.StringFixed(2)),
	)
	publish(ctx, uc.events, uc.log,
		event.PaymentRefunded{
			Base:      event.NewBase(),
			PaymentID: p.ID,
			OrderID:   p.OrderID,
			UserID:    p.UserID,
			Amount:    p.Amount,
			Method:    string(p.Method),
		},
		event.OrderCancelled{
			Base:      event.NewBase(),
			OrderID:   o.ID,
			OrderCode: o.Code,
			UserID:    o.UserID,
			Reason:    "refund",
		},
	)
	return p, nil
}
