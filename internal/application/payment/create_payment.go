package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/domain/transaction"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

// CreatePaymentUseCase 发起支付
type CreatePaymentUseCase struct {
	tx       transaction.Manager
	orders   order.Repository
	payments payment.Repository
	gateways payment.GatewayResolver
	tracker  payment.PendingTracker
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// NewCreatePaymentUseCase 创建发起支付用例
func NewCreatePaymentUseCase(
	tx transaction.Manager,
	orders order.Repository,
	payments payment.Repository,
	gateways payment.GatewayResolver,
	tracker payment.PendingTracker,
	opts Options,
	log *zap.Logger,
) *CreatePaymentUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreatePaymentUseCase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		gateways: gateways,
		tracker:  tracker,
		opts:     opts.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// CreatePaymentRequest 发起支付请求
type CreatePaymentRequest struct {
	OrderCode string
	UserID    uint
	Method    payment.Method // 为空时使用默认渠道
	ClientIP  string
}

// Execute 发起支付
//
// 流程：
//  1. 订单必须属于当前用户且为pending
//  2. 已有支付：failed可重试（failed→pending，新会话），其他返回DuplicatePaymentError
//  3. 事务外调用网关创建支付会话，失败不落库
//  4. 事务内写入支付记录，order_id唯一索引兜底并发
//  5. 加入对账队列
func (uc *CreatePaymentUseCase) Execute(ctx context.Context, req CreatePaymentRequest) (p *payment.Payment, err error) {
	ctx, span := tracing.StartSpan(ctx, "payment.create", attribute.String("order_code", req.OrderCode))
	defer func() { tracing.EndSpan(span, err) }()

	method := req.Method
	if method == "" {
		method = uc.gateways.Default()
	}
	if !method.Valid() {
		return nil, payment.ErrUnsupportedMethod
	}
	gw, err := uc.gateways.Gateway(method)
	if err != nil {
		return nil, err
	}

	o, err := uc.orders.FindByCode(ctx, req.OrderCode)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(req.UserID) {
		return nil, order.ErrNotOwner
	}
	if o.Status != order.StatusPending {
		return nil, payment.ErrOrderNotPayable
	}

	existing, err := uc.payments.FindByOrderID(ctx, o.ID)
	switch {
	case err == nil && existing.Status != payment.StatusFailed:
		return nil, &payment.DuplicatePaymentError{OrderID: o.ID, Status: existing.Status}
	case err != nil && !errors.Is(err, payment.ErrPaymentNotFound):
		return nil, err
	}

	transactionID := uuid.NewString()
	var session *payment.CheckoutSession
	err = callGateway(ctx, uc.opts.GatewayTimeout, gw, "create_checkout", func(ctx context.Context) error {
		var gwErr error
		session, gwErr = gw.CreateCheckout(ctx, payment.CheckoutRequest{
			OrderCode:     o.Code,
			TransactionID: transactionID,
			Amount:        o.TotalAmount(),
			Description:   "Thanh toan don hang " + o.Code,
			ClientIP:      req.ClientIP,
			ReturnURL:     uc.opts.ReturnURL,
		})
		return gwErr
	})
	if err != nil {
		logger.FromContextOr(ctx, uc.log).Warn("payment_checkout_failed",
			zap.String("order_code", o.Code),
			zap.String("provider", gw.Provider()),
			zap.Error(err),
		)
		return nil, err
	}

	now := uc.now()
	err = uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		if existing == nil {
			p = &payment.Payment{
				OrderID:   o.ID,
				UserID:    o.UserID,
				Amount:    o.TotalAmount(),
				Method:    method,
				Status:    payment.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			p.TransactionID = transactionID
			p.ExternalRef = session.ExternalRef
			p.CheckoutURL = session.CheckoutURL
			return uc.payments.Create(txCtx, p)
		}

		// 重试：锁定后再确认仍是failed
		locked, err := uc.payments.LockByID(txCtx, existing.ID)
		if err != nil {
			return err
		}
		if _, err := locked.Apply(payment.EventRetry, now); err != nil {
			return &payment.DuplicatePaymentError{OrderID: o.ID, Status: locked.Status}
		}
		locked.Method = method
		locked.Amount = o.TotalAmount()
		locked.TransactionID = transactionID
		locked.ExternalRef = session.ExternalRef
		locked.CheckoutURL = session.CheckoutURL
		p = locked
		return uc.payments.Update(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	if err := uc.tracker.Track(ctx, p.ID, now.Add(uc.opts.ReconcileAfter)); err != nil {
		logger.FromContextOr(ctx, uc.log).Warn("payment_track_failed", zap.Uint("payment_id", p.ID), zap.Error(err))
	}
	metrics.RecordPaymentTransition(string(p.Method), string(p.Status))
	logger.FromContextOr(ctx, uc.log).Info("payment_created",
		zap.Uint("payment_id", p.ID),
		zap.String("order_code", o.Code),
		zap.String("method", string(method)),
		zap.String("amount", p.Amount.StringFixed(2)),
	)
	return p, nil
}

