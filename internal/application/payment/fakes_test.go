package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/memory"
)

// fakeGateway 可编排结果的网关
type fakeGateway struct {
	mu sync.Mutex

	checkoutErr   error
	confirmStatus payment.ConfirmStatus
	confirmErr    error
	refundErr     error
	hang          bool // 阻塞直到ctx超时

	checkoutCalls int
	confirmCalls  int
	refundCalls   int
}

func (g *fakeGateway) Provider() string { return "fake" }

func (g *fakeGateway) wait(ctx context.Context) error {
	g.mu.Lock()
	hang := g.hang
	g.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	g.checkoutCalls++
	err := g.checkoutErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &payment.CheckoutSession{
		CheckoutURL: "https://pay.example/" + req.TransactionID,
		ExternalRef: "ref-" + req.TransactionID,
	}, nil
}

func (g *fakeGateway) Confirm(ctx context.Context, _ string) (payment.ConfirmStatus, error) {
	g.mu.Lock()
	g.confirmCalls++
	status, err := g.confirmStatus, g.confirmErr
	g.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return status, err
}

func (g *fakeGateway) Refund(ctx context.Context, _ string, _ decimal.Decimal) error {
	g.mu.Lock()
	g.refundCalls++
	err := g.refundErr
	g.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return err
	}
	return err
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) calls() (confirm, refund int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmCalls, g.refundCalls
}

type fakeResolver struct{ gw payment.Gateway }

func (r fakeResolver) Gateway(payment.Method) (payment.Gateway, error) { return r.gw, nil }
func (r fakeResolver) Default() payment.Method                         { return payment.MethodSandbox }

// recorder 记录发布的事件名
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) Publish(_ context.Context, events ...event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.names = append(r.names, e.Name())
	}
	return nil
}

func (r *recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

var errGatewayDown = errors.New("connection refused")

var stockKey = inventory.Key{DistributorID: 10, ProductID: 1}

type fixture struct {
	store    *memory.Store
	orders   order.Repository
	payments payment.Repository
	tracker  *memory.PendingTracker
	locker   *memory.Locker
	gw       *fakeGateway
	events   *recorder

	create  *CreatePaymentUseCase
	confirm *ConfirmPaymentUseCase
	refund  *RefundPaymentUseCase
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.PutProduct(catalog.Product{ID: 1, DistributorID: 10, Name: "Paracetamol 500mg", Price: decimal.RequireFromString("100"), IsApproved: true})
	// 订单已扣减2件后的库存
	store.PutStock(stockKey, 8)

	f := &fixture{
		store:    store,
		orders:   memory.NewOrderRepository(store),
		payments: memory.NewPaymentRepository(store),
		tracker:  memory.NewPendingTracker(),
		locker:   memory.NewLocker(),
		gw:       &fakeGateway{confirmStatus: payment.ConfirmPaid},
		events:   &recorder{},
	}
	resolver := fakeResolver{gw: f.gw}
	ledger := memory.NewLedger(store)

	f.create = NewCreatePaymentUseCase(store, f.orders, f.payments, resolver, f.tracker, opts, nil)
	f.confirm = NewConfirmPaymentUseCase(store, f.orders, f.payments, resolver, f.tracker, f.events, opts, nil)
	f.refund = NewRefundPaymentUseCase(store, f.orders, f.payments, ledger, resolver, f.locker, f.events, opts, nil)
	return f
}

// placeOrder 直接写入一个待支付订单：2 × 100，优惠20
func (f *fixture) placeOrder(t *testing.T, userID uint) *order.Order {
	t.Helper()
	o := order.NewOrder(order.GenerateCode(), userID, []order.Item{
		{ProductID: 1, DistributorID: 10, ProductName: "Paracetamol 500mg", Quantity: 2, Price: decimal.RequireFromString("100")},
	}, nil, decimal.RequireFromString("20"))
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func (f *fixture) orderStatus(t *testing.T, id uint) order.Status {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func (f *fixture) paymentOf(t *testing.T, id uint) *payment.Payment {
	t.Helper()
	p, err := f.payments.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) isTracked(t *testing.T, id uint) bool {
	t.Helper()
	ids, err := f.tracker.Due(context.Background(), time.Now().Add(24*time.Hour), 0)
	require.NoError(t, err)
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
