package payment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/domain/transaction"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

// ConfirmPaymentUseCase 确认支付结果
type ConfirmPaymentUseCase struct {
	tx       transaction.Manager
	orders   order.Repository
	payments payment.Repository
	gateways payment.GatewayResolver
	tracker  payment.PendingTracker
	events   event.Publisher
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// NewConfirmPaymentUseCase 创建确认支付用例
func NewConfirmPaymentUseCase(
	tx transaction.Manager,
	orders order.Repository,
	payments payment.Repository,
	gateways payment.GatewayResolver,
	tracker payment.PendingTracker,
	events event.Publisher,
	opts Options,
	log *zap.Logger,
) *ConfirmPaymentUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfirmPaymentUseCase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		gateways: gateways,
		tracker:  tracker,
		events:   events,
		opts:     opts.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// ConfirmPaymentRequest 二选一：PaymentID或TransactionID（网关回调）
// UserID为0表示系统调用（回调、对账），不校验归属
type ConfirmPaymentRequest struct {
	PaymentID     uint
	TransactionID string
	UserID        uint
}

// Execute 向网关查询结果并推进状态机
//
//   - paid：payment→completed，同一事务内order→completed
//   - failed：payment→failed，订单保持不变，允许重新发起支付
//   - pending或超时：不做任何修改，超时返回GatewayError
//
// 已完成的支付再次确认直接返回，不调用网关，没有副作用
func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, req ConfirmPaymentRequest) (p *payment.Payment, err error) {
	ctx, span := tracing.StartSpan(ctx, "payment.confirm",
		attribute.Int64("payment_id", int64(req.PaymentID)),
		attribute.String("transaction_id", req.TransactionID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if req.TransactionID != "" {
		p, err = uc.payments.FindByTransactionID(ctx, req.TransactionID)
	} else {
		p, err = uc.payments.FindByID(ctx, req.PaymentID)
	}
	if err != nil {
		return nil, err
	}
	if req.UserID != 0 && !p.IsOwnedBy(req.UserID) {
		return nil, payment.ErrNotOwner
	}

	if p.Status == payment.StatusCompleted {
		return p, nil
	}
	if _, err := payment.Transition(p.Status, payment.EventConfirmPaid); err != nil {
		return nil, err
	}

	gw, err := uc.gateways.Gateway(p.Method)
	if err != nil {
		return nil, err
	}
	var status payment.ConfirmStatus
	err = callGateway(ctx, uc.opts.GatewayTimeout, gw, "confirm", func(ctx context.Context) error {
		var gwErr error
		status, gwErr = gw.Confirm(ctx, p.ExternalRef)
		return gwErr
	})
	if err != nil {
		logger.FromContextOr(ctx, uc.log).Warn("payment_confirm_gateway_error",
			zap.Uint("payment_id", p.ID),
			zap.String("provider", gw.Provider()),
			zap.Error(err),
		)
		return nil, err
	}

	switch status {
	case payment.ConfirmPaid:
		return uc.settle(ctx, p.ID)
	case payment.ConfirmFailed:
		return uc.fail(ctx, p.ID)
	default:
		return p, nil
	}
}

// settle 支付成功：payment和order在同一事务内完成
func (uc *ConfirmPaymentUseCase) settle(ctx context.Context, paymentID uint) (*payment.Payment, error) {
	var (
		settled *payment.Payment
		o       *order.Order
		changed bool
	)
	err := uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.payments.LockByID(txCtx, paymentID)
		if err != nil {
			return err
		}
		changed, err = locked.Apply(payment.EventConfirmPaid, uc.now())
		if err != nil {
			return err
		}
		settled = locked
		if !changed {
			return nil
		}
		if err := uc.payments.Update(txCtx, locked); err != nil {
			return err
		}

		o, err = uc.orders.FindByID(txCtx, locked.OrderID)
		if err != nil {
			return err
		}
		o, err = uc.orders.LockByCode(txCtx, o.Code)
		if err != nil {
			return err
		}
		if o.Status == order.StatusCompleted {
			return nil
		}
		if err := o.Apply(order.EventComplete); err != nil {
			return err
		}
		return uc.orders.UpdateStatus(txCtx, o)
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInvalidTransition {
			// 网关已扣款但本地订单已关闭，需要人工退款
			logger.FromContextOr(ctx, uc.log).Error("payment_paid_on_closed_order",
				zap.Uint("payment_id", paymentID),
				zap.Error(err),
			)
		}
		return nil, err
	}
	if !changed {
		return settled, nil
	}

	uc.untrack(ctx, settled.ID)
	metrics.RecordPaymentTransition(string(settled.Method), string(settled.Status))
	logger.FromContextOr(ctx, uc.log).Info("payment_completed",
		zap.Uint("payment_id", settled.ID),
		zap.Uint("order_id", settled.OrderID),
	)
	ev := event.PaymentCompleted{
		Base:      event.NewBase(),
		PaymentID: settled.ID,
		OrderID:   settled.OrderID,
		UserID:    settled.UserID,
		Amount:    settled.Amount,
		Method:    string(settled.Method),
	}
	if o != nil {
		ev.OrderCode = o.Code
	}
	publish(ctx, uc.events, uc.log, ev)
	return settled, nil
}

// fail 支付失败：只改payment
func (uc *ConfirmPaymentUseCase) fail(ctx context.Context, paymentID uint) (*payment.Payment, error) {
	var failed *payment.Payment
	err := uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.payments.LockByID(txCtx, paymentID)
		if err != nil {
			return err
		}
		if _, err := locked.Apply(payment.EventConfirmFailed, uc.now()); err != nil {
			return err
		}
		failed = locked
		return uc.payments.Update(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	uc.untrack(ctx, failed.ID)
	metrics.RecordPaymentTransition(string(failed.Method), string(failed.Status))
	logger.FromContextOr(ctx, uc.log).Info("payment_failed", zap.Uint("payment_id", failed.ID))
	publish(ctx, uc.events, uc.log, event.PaymentFailed{
		Base:      event.NewBase(),
		PaymentID: failed.ID,
		OrderID:   failed.OrderID,
		UserID:    failed.UserID,
		Method:    string(failed.Method),
	})
	return failed, nil
}

func (uc *ConfirmPaymentUseCase) untrack(ctx context.Context, paymentID uint) {
	if err := uc.tracker.Untrack(ctx, paymentID); err != nil {
		logger.FromContextOr(ctx, uc.log).Warn("payment_untrack_failed", zap.Uint("payment_id", paymentID), zap.Error(err))
	}
}
