package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	paymentapp "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/domain/transaction"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

// Refunder 退款
type Refunder interface {
	Execute(ctx context.Context, req paymentapp.RefundPaymentRequest) (*payment.Payment, error)
}

// PaymentConfirmer 向网关查询支付结果
type PaymentConfirmer interface {
	Execute(ctx context.Context, req paymentapp.ConfirmPaymentRequest) (*payment.Payment, error)
}

// CancelOrderUseCase 取消订单
type CancelOrderUseCase struct {
	tx       transaction.Manager
	orders   order.Repository
	payments payment.Repository
	ledger    inventory.Ledger
	confirmer PaymentConfirmer
	refunder  Refunder
	events    event.Publisher
	log       *zap.Logger
}

// NewCancelOrderUseCase 创建取消订单用例
func NewCancelOrderUseCase(
	tx transaction.Manager,
	orders order.Repository,
	payments payment.Repository,
	ledger inventory.Ledger,
	confirmer PaymentConfirmer,
	refunder Refunder,
	events event.Publisher,
	log *zap.Logger,
) *CancelOrderUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CancelOrderUseCase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		ledger:    ledger,
		confirmer: confirmer,
		refunder:  refunder,
		events:    events,
		log:       log,
	}
}

// CancelOrderRequest 取消请求
type CancelOrderRequest struct {
	OrderCode string
	UserID    uint
	Reason    string
}

// Execute 取消订单
//
// 支付pending时先向网关确认结果，本地不猜测支付状态：
//   - 网关返回已付款：支付completed后走退款，订单cancelled、库存加回
//   - 网关返回失败，或没有支付、支付已failed：事务内加回库存、订单cancelled
//   - 网关仍未给出结果或调用超时：不做修改，返回可重试错误
//
// 其他状态（已取消、已完成但没有可退款的支付）返回InvalidTransitionError
func (uc *CancelOrderUseCase) Execute(ctx context.Context, req CancelOrderRequest) (o *order.Order, err error) {
	ctx, span := tracing.StartSpan(ctx, "order.cancel", attribute.String("order_code", req.OrderCode))
	defer func() { tracing.EndSpan(span, err) }()

	o, err = uc.orders.FindByCode(ctx, req.OrderCode)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(req.UserID) {
		return nil, order.ErrNotOwner
	}

	p, err := uc.payments.FindByOrderID(ctx, o.ID)
	if err != nil && !errors.Is(err, payment.ErrPaymentNotFound) {
		return nil, err
	}
	if p != nil && p.Status == payment.StatusPending {
		if p, err = uc.confirmer.Execute(ctx, paymentapp.ConfirmPaymentRequest{PaymentID: p.ID}); err != nil {
			return nil, err
		}
		if p.Status == payment.StatusPending {
			return nil, payment.ErrPaymentUnsettled
		}
	}
	if p != nil && p.Status == payment.StatusCompleted {
		if _, err := uc.refunder.Execute(ctx, paymentapp.RefundPaymentRequest{PaymentID: p.ID, UserID: req.UserID}); err != nil {
			return nil, err
		}
		return uc.orders.FindByID(ctx, o.ID)
	}

	if !o.CanCancel() {
		return nil, &apperrors.InvalidTransitionError{Entity: "order", From: string(o.Status), Event: string(order.EventCancel)}
	}

	err = uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.orders.LockByCode(txCtx, o.Code)
		if err != nil {
			return err
		}
		if err := locked.Apply(order.EventCancel); err != nil {
			return err
		}

		if p != nil {
			// 确认与取消之间支付可能被重新发起或刚好完成，回滚后由调用方重试
			lockedPayment, err := uc.payments.LockByID(txCtx, p.ID)
			if err != nil {
				return err
			}
			switch lockedPayment.Status {
			case payment.StatusPending:
				return payment.ErrPaymentUnsettled
			case payment.StatusCompleted:
				return &apperrors.InvalidTransitionError{Entity: "order", From: string(o.Status), Event: string(order.EventCancel)}
			}
		}

		if err := inventory.Restock(txCtx, uc.ledger, locked.RestockLines()); err != nil {
			return err
		}
		if err := uc.orders.UpdateStatus(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderCancelled()
	logger.FromContextOr(ctx, uc.log).Info("order_cancelled",
		zap.String("order_code", o.Code),
		zap.String("reason", req.Reason),
	)
	publish(ctx, uc.events, uc.log, event.OrderCancelled{
		Base:      event.NewBase(),
		OrderID:   o.ID,
		OrderCode: o.Code,
		UserID:    o.UserID,
		Reason:    req.Reason,
	})
	return o, nil
}
