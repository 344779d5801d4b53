package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	paymentapp "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
	"github.com/FongFus/Pharmatech/pkg/saga"
)

// PaymentCreator 发起支付
type PaymentCreator interface {
	Execute(ctx context.Context, req paymentapp.CreatePaymentRequest) (*payment.Payment, error)
}

// IdempotencyStore 幂等键（Redis）
type IdempotencyStore interface {
	// Begin 首次请求返回(nil, nil)；已完成返回之前的结果；处理中返回ErrRequestInFlight
	Begin(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// CheckoutUseCase 结算：下单 + 发起支付
//
// 两步之间有网关调用，不能放在一个数据库事务里，用Saga串联：
// 发起支付失败时撤销订单，不留下无法支付的pending订单。
type CheckoutUseCase struct {
	orders   *CreateOrderUseCase
	payments PaymentCreator
	idem     IdempotencyStore
	opts     Options
	log      *zap.Logger
}

// NewCheckoutUseCase 创建结算用例，idem为nil时不支持幂等键
func NewCheckoutUseCase(orders *CreateOrderUseCase, payments PaymentCreator, idem IdempotencyStore, opts Options, log *zap.Logger) *CheckoutUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutUseCase{
		orders:   orders,
		payments: payments,
		idem:     idem,
		opts:     opts.withDefaults(),
		log:      log,
	}
}

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	CartID         uint
	UserID         uint
	DiscountCode   string
	Method         payment.Method
	ClientIP       string
	IdempotencyKey string // 请求头Idempotency-Key
}

// CheckoutResponse 结算结果，同时是幂等键缓存的内容
type CheckoutResponse struct {
	OrderID        uint            `json:"order_id"`
	OrderCode      string          `json:"order_code"`
	OrderStatus    string          `json:"order_status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentID      uint            `json:"payment_id"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentStatus  string          `json:"payment_status"`
	CheckoutURL    string          `json:"checkout_url"`
	Replayed       bool            `json:"replayed"`
}

// Execute 结算
// 带幂等键时，同一用户同一个键只执行一次，重复请求返回第一次的结果
func (uc *CheckoutUseCase) Execute(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if req.IdempotencyKey == "" || uc.idem == nil {
		return uc.run(ctx, req)
	}

	key := fmt.Sprintf("checkout:%d:%s", req.UserID, req.IdempotencyKey)
	cached, err := uc.idem.Begin(ctx, key, uc.opts.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		var resp CheckoutResponse
		if err := json.Unmarshal(cached, &resp); err != nil {
			return nil, fmt.Errorf("幂等结果反序列化失败: %w", err)
		}
		resp.Replayed = true
		return &resp, nil
	}

	resp, err := uc.run(ctx, req)
	if err != nil {
		// 失败不缓存，同一个键可以重试
		if relErr := uc.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
			logger.FromContextOr(ctx, uc.log).Warn("idempotency_release_failed", zap.String("key", key), zap.Error(relErr))
		}
		return nil, err
	}

	body, err := json.Marshal(resp)
	if err == nil {
		err = uc.idem.Complete(context.WithoutCancel(ctx), key, body, uc.opts.IdempotencyTTL)
	}
	if err != nil {
		logger.FromContextOr(ctx, uc.log).Warn("idempotency_complete_failed", zap.String("key", key), zap.Error(err))
	}
	return resp, nil
}

func (uc *CheckoutUseCase) run(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	done := metrics.TrackCheckout()
	defer done()
	started := time.Now()

	var (
		o    *order.Order
		snap cart.Snapshot
		p    *payment.Payment
	)

	s := saga.NewSaga(uc.opts.CheckoutTimeout).WithLogger(uc.log)
	s.AddStep("create_order",
		func(ctx context.Context) error {
			var err error
			o, snap, err = uc.orders.place(ctx, CreateOrderRequest{
				CartID:       req.CartID,
				UserID:       req.UserID,
				DiscountCode: req.DiscountCode,
			})
			return err
		},
		func(ctx context.Context) error {
			return uc.orders.Discard(ctx, o.Code, snap.CartID(), snap.Items())
		},
	)
	s.AddStep("create_payment",
		func(ctx context.Context) error {
			var err error
			p, err = uc.payments.Execute(ctx, paymentapp.CreatePaymentRequest{
				OrderCode: o.Code,
				UserID:    req.UserID,
				Method:    req.Method,
				ClientIP:  req.ClientIP,
			})
			return err
		},
		nil,
	)

	err := s.Execute(ctx)
	metrics.RecordSaga(err == nil, s.Compensated())
	if err != nil {
		if compErr := s.CompensationError(); compErr != nil {
			logger.FromContextOr(ctx, uc.log).Error("checkout_compensation_failed",
				zap.Uint("cart_id", req.CartID),
				zap.Error(compErr),
			)
		}
		return nil, err
	}

	uc.orders.committed(ctx, o, started)
	return &CheckoutResponse{
		OrderID:        o.ID,
		OrderCode:      o.Code,
		OrderStatus:    string(o.Status),
		Subtotal:       o.Subtotal(),
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount(),
		PaymentID:      p.ID,
		PaymentMethod:  string(p.Method),
		PaymentStatus:  string(p.Status),
		CheckoutURL:    p.CheckoutURL,
	}, nil
}
