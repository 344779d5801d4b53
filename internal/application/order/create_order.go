package order

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/discount"
	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/transaction"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

// CreateOrderUseCase 下单：购物车 → 订单
// 快照解析、库存锁定与扣减、优惠码核销、写订单、清空购物车在同一个事务内完成
type CreateOrderUseCase struct {
	tx        transaction.Manager
	resolver  *cart.Resolver
	carts     cart.Repository
	ledger    inventory.Ledger
	discounts discount.Repository
	orders    order.Repository
	events    event.Publisher
	opts      Options
	log       *zap.Logger

	now     func() time.Time
	newCode func() string
}

// NewCreateOrderUseCase 创建下单用例
func NewCreateOrderUseCase(
	tx transaction.Manager,
	resolver *cart.Resolver,
	carts cart.Repository,
	ledger inventory.Ledger,
	discounts discount.Repository,
	orders order.Repository,
	events event.Publisher,
	opts Options,
	log *zap.Logger,
) *CreateOrderUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreateOrderUseCase{
		tx:        tx,
		resolver:  resolver,
		carts:     carts,
		ledger:    ledger,
		discounts: discounts,
		orders:    orders,
		events:    events,
		opts:      opts.withDefaults(),
		log:       log,
		now:       time.Now,
		newCode:   order.GenerateCode,
	}
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	CartID       uint
	UserID       uint   // 从JWT中提取
	DiscountCode string // 可选
}

// Execute 下单
//
// 防超卖：
//  1. 按商品ID升序 SELECT ... FOR UPDATE 锁定库存行，所有下单请求加锁顺序一致，不会死锁
//  2. 锁内检查库存，任何一行不足整单失败
//  3. UPDATE ... WHERE quantity >= ? 扣减，影响行数为0同样整单失败
//
// 优惠码次数用 uses_count < max_uses 条件自增，抢不到返回exhausted。
// 事件只在提交后发布。
func (uc *CreateOrderUseCase) Execute(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	started := time.Now()
	o, _, err := uc.place(ctx, req)
	if err != nil {
		return nil, err
	}
	uc.committed(ctx, o, started)
	return o, nil
}

// place 执行下单事务，不发布事件
// 返回的快照供结算失败时恢复购物车
func (uc *CreateOrderUseCase) place(ctx context.Context, req CreateOrderRequest) (o *order.Order, snap cart.Snapshot, err error) {
	ctx, span := tracing.StartSpan(ctx, "order.create",
		attribute.Int64("cart_id", int64(req.CartID)),
		attribute.Bool("discount", req.DiscountCode != ""),
	)
	defer func() {
		tracing.EndSpan(span, err)
		if err != nil {
			metrics.RecordOrderFailed(apperrors.KindOf(err).String())
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, uc.opts.LockTimeout)
	defer cancel()

	err = uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		// 1. 购物车快照（单价在此刻确定）
		snap, err = uc.resolver.Resolve(txCtx, req.CartID, req.UserID)
		if err != nil {
			return err
		}

		// 2-3. 按固定顺序锁定库存并检查
		lines := sortedLines(snap)
		for _, line := range lines {
			if err := uc.lockAndCheck(txCtx, line); err != nil {
				return err
			}
		}

		// 4. 小计只用快照价格
		subtotal := snap.Subtotal()

		// 5. 优惠码
		discountID, discountAmount, err := uc.redeem(txCtx, req.DiscountCode, subtotal)
		if err != nil {
			return err
		}

		// 6. 扣减库存
		for _, line := range lines {
			rows, err := uc.ledger.Decrement(txCtx, lineKey(line), line.Quantity)
			if err != nil {
				return err
			}
			if rows == 0 {
				return &inventory.InsufficientStockError{
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Requested:   line.Quantity,
				}
			}
		}

		// 7. 写订单
		items := make([]order.Item, 0, len(lines))
		for _, line := range lines {
			items = append(items, order.Item{
				ProductID:     line.ProductID,
				DistributorID: line.DistributorID,
				ProductName:   line.ProductName,
				Quantity:      line.Quantity,
				Price:         line.UnitPrice,
			})
		}
		o, err = uc.insert(txCtx, req.UserID, items, discountID, discountAmount)
		if err != nil {
			return err
		}

		// 8. 清空购物车
		return uc.carts.ClearItems(txCtx, snap.CartID())
	})
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.Persistence(err, "下单超时，请稍后重试")
	}
	if err != nil {
		logger.FromContextOr(ctx, uc.log).Info("order_create_rejected",
			zap.Uint("cart_id", req.CartID),
			zap.Uint("user_id", req.UserID),
			zap.String("kind", apperrors.KindOf(err).String()),
			zap.Error(err),
		)
		return nil, cart.Snapshot{}, err
	}
	return o, snap, nil
}

func lineKey(l cart.Line) inventory.Key {
	return inventory.Key{DistributorID: l.DistributorID, ProductID: l.ProductID}
}

func sortedLines(snap cart.Snapshot) []cart.Line {
	lines := snap.Lines()
	// 与Restock使用同一个全局顺序
	sort.SliceStable(lines, func(i, j int) bool { return inventory.Less(lineKey(lines[i]), lineKey(lines[j])) })
	return lines
}

func (uc *CreateOrderUseCase) lockAndCheck(ctx context.Context, line cart.Line) error {
	stock, err := uc.ledger.Lock(ctx, lineKey(line))
	if errors.Is(err, inventory.ErrStockNotFound) {
		return &inventory.InsufficientStockError{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Requested:   line.Quantity,
		}
	}
	if err != nil {
		return err
	}
	if stock.Quantity < line.Quantity {
		return &inventory.InsufficientStockError{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Requested:   line.Quantity,
			Available:   stock.Quantity,
		}
	}
	return nil
}

// redeem 校验优惠码并占用一次使用次数
func (uc *CreateOrderUseCase) redeem(ctx context.Context, code string, subtotal decimal.Decimal) (*uint, decimal.Decimal, error) {
	if code == "" {
		return nil, decimal.Zero, nil
	}
	d, err := uc.discounts.FindByCode(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := discount.Validate(d, subtotal, uc.now()); err != nil {
		return nil, decimal.Zero, err
	}
	amount := discount.ComputeAmount(d, subtotal)

	rows, err := uc.discounts.IncrementUsage(ctx, d.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if rows == 0 {
		return nil, decimal.Zero, discount.Invalid(d.Code, discount.ReasonExhausted)
	}
	id := d.ID
	return &id, amount, nil
}

// insert 写订单，订单号冲突时在SAVEPOINT内重试
func (uc *CreateOrderUseCase) insert(ctx context.Context, userID uint, items []order.Item, discountID *uint, discountAmount decimal.Decimal) (*order.Order, error) {
	for attempt := 1; attempt <= uc.opts.CodeAttempts; attempt++ {
		o := order.NewOrder(uc.newCode(), userID, append([]order.Item(nil), items...), discountID, discountAmount)
		err := uc.tx.Transaction(ctx, func(spCtx context.Context) error {
			return uc.orders.Create(spCtx, o)
		})
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, order.ErrDuplicateCode) {
			return nil, err
		}
		logger.FromContextOr(ctx, uc.log).Warn("order_code_collision",
			zap.String("order_code", o.Code),
			zap.Int("attempt", attempt),
		)
	}
	return nil, order.ErrCodeExhausted
}

// committed 提交后的指标、日志、事件
func (uc *CreateOrderUseCase) committed(ctx context.Context, o *order.Order, started time.Time) {
	metrics.RecordOrderCreated(time.Since(started), o.DiscountID != nil)
	logger.FromContextOr(ctx, uc.log).Info("order_created",
		zap.Uint("order_id", o.ID),
		zap.String("order_code", o.Code),
		zap.Uint("user_id", o.UserID),
		zap.String("total_amount", o.TotalAmount().StringFixed(2)),
		zap.String("discount_amount", o.DiscountAmount.StringFixed(2)),
	)
	publish(ctx, uc.events, uc.log, event.OrderCreated{
		Base:           event.NewBase(),
		OrderID:        o.ID,
		OrderCode:      o.Code,
		UserID:         o.UserID,
		TotalAmount:    o.TotalAmount(),
		DiscountAmount: o.DiscountAmount,
		ItemCount:      len(o.Items),
	})
}

// Discard 结算失败时撤销刚创建的订单
// 加回库存、归还优惠码次数、恢复购物车、删除订单；订单已不存在时视为已补偿
func (uc *CreateOrderUseCase) Discard(ctx context.Context, code string, cartID uint, items []cart.Item) error {
	err := uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		o, err := uc.orders.LockByCode(txCtx, code)
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return &apperrors.InvalidTransitionError{Entity: "order", From: string(o.Status), Event: "discard"}
		}
		if err := inventory.Restock(txCtx, uc.ledger, o.RestockLines()); err != nil {
			return err
		}
		if o.DiscountID != nil {
			if err := uc.discounts.DecrementUsage(txCtx, *o.DiscountID); err != nil {
				return err
			}
		}
		if err := uc.carts.RestoreItems(txCtx, cartID, items); err != nil {
			return err
		}
		return uc.orders.Delete(txCtx, o.ID)
	})
	if err != nil {
		return err
	}
	logger.FromContextOr(ctx, uc.log).Info("order_discarded", zap.String("order_code", code), zap.Uint("cart_id", cartID))
	return nil
}
