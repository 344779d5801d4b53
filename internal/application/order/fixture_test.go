package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	paymentapp "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/discount"
	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/memory"
)

var (
	keyP = inventory.Key{DistributorID: 10, ProductID: 1} // P：单价100
	keyQ = inventory.Key{DistributorID: 20, ProductID: 2} // Q：单价12.50
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// sandboxGateway 内存网关，可模拟下单、查询失败
type sandboxGateway struct {
	mu          sync.Mutex
	checkoutErr error
	confirmErr  error
	status      payment.ConfirmStatus
	refunds     int
}

func (g *sandboxGateway) Provider() string { return "sandbox" }

func (g *sandboxGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	return &payment.CheckoutSession{CheckoutURL: "https://sandbox.local/pay/" + req.TransactionID, ExternalRef: req.TransactionID}, nil
}

func (g *sandboxGateway) Confirm(context.Context, string) (payment.ConfirmStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmErr != nil {
		return "", g.confirmErr
	}
	return g.status, nil
}

func (g *sandboxGateway) Refund(context.Context, string, decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return nil
}

func (g *sandboxGateway) settle(status payment.ConfirmStatus, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	g.confirmErr = err
}

func (g *sandboxGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds
}

func (g *sandboxGateway) Gateway(payment.Method) (payment.Gateway, error) { return g, nil }
func (g *sandboxGateway) Default() payment.Method                         { return payment.MethodSandbox }

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, events ...event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name())
	}
	return names
}

type fixture struct {
	store    *memory.Store
	orders   order.Repository
	payments payment.Repository
	gw       *sandboxGateway
	events   *recorder

	create   *CreateOrderUseCase
	checkout *CheckoutUseCase
	cancel   *CancelOrderUseCase
	get      *GetOrderUseCase
	confirm  *paymentapp.ConfirmPaymentUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.PutProduct(catalog.Product{ID: 1, DistributorID: 10, Name: "Paracetamol 500mg", Price: dec("100"), IsApproved: true})
	store.PutProduct(catalog.Product{ID: 2, DistributorID: 20, Name: "Vitamin C", Price: dec("12.50"), IsApproved: true})

	carts := memory.NewCartRepository(store)
	ledger := memory.NewLedger(store)
	discounts := memory.NewDiscountRepository(store)
	tracker := memory.NewPendingTracker()

	f := &fixture{
		store:    store,
		orders:   memory.NewOrderRepository(store),
		payments: memory.NewPaymentRepository(store),
		gw:       &sandboxGateway{status: payment.ConfirmPaid},
		events:   &recorder{},
	}

	resolver := cart.NewResolver(carts, memory.NewCatalogReader(store))
	opts := Options{LockTimeout: 2 * time.Second}
	f.create = NewCreateOrderUseCase(store, resolver, carts, ledger, discounts, f.orders, f.events, opts, nil)

	payOpts := paymentapp.Options{GatewayTimeout: time.Second}
	createPayment := paymentapp.NewCreatePaymentUseCase(store, f.orders, f.payments, f.gw, tracker, payOpts, nil)
	refund := paymentapp.NewRefundPaymentUseCase(store, f.orders, f.payments, ledger, f.gw, memory.NewLocker(), f.events, payOpts, nil)
	f.confirm = paymentapp.NewConfirmPaymentUseCase(store, f.orders, f.payments, f.gw, tracker, f.events, payOpts, nil)

	f.checkout = NewCheckoutUseCase(f.create, createPayment, memory.NewIdempotencyStore(), opts, nil)
	f.cancel = NewCancelOrderUseCase(store, f.orders, f.payments, ledger, f.confirm, refund, f.events, nil)
	f.get = NewGetOrderUseCase(f.orders, f.payments)
	return f
}

func (f *fixture) saveDiscount(d discount.Discount) uint {
	if d.StartAt.IsZero() {
		d.StartAt = time.Now().Add(-time.Hour)
	}
	if d.EndAt.IsZero() {
		d.EndAt = time.Now().Add(time.Hour)
	}
	d.IsActive = true
	return f.store.PutDiscount(d)
}

func (f *fixture) order(t *testing.T, id uint) *order.Order {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

var errGatewayDown = errors.New("gateway unavailable")

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
