package handler

import (
	"context"
	"net/url"

	"github.com/stretchr/testify/mock"

	apporder "github.com/FongFus/Pharmatech/internal/application/order"
	apppayment "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/gateway"
)

type mockCheckout struct{ mock.Mock }

func (m *mockCheckout) Execute(ctx context.Context, req apporder.CheckoutRequest) (*apporder.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*apporder.CheckoutResponse)
	return resp, args.Error(1)
}

type mockOrderGetter struct{ mock.Mock }

func (m *mockOrderGetter) Execute(ctx context.Context, code string, userID uint) (*apporder.OrderView, error) {
	args := m.Called(ctx, code, userID)
	view, _ := args.Get(0).(*apporder.OrderView)
	return view, args.Error(1)
}

type mockOrderLister struct{ mock.Mock }

func (m *mockOrderLister) Execute(ctx context.Context, req apporder.ListOrdersRequest) (*apporder.ListOrdersResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*apporder.ListOrdersResponse)
	return resp, args.Error(1)
}

type mockOrderCanceller struct{ mock.Mock }

func (m *mockOrderCanceller) Execute(ctx context.Context, req apporder.CancelOrderRequest) (*order.Order, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

// mockPaymentUseCase 同时充当create/confirm/refund
type mockPaymentUseCase struct{ mock.Mock }

func (m *mockPaymentUseCase) result(args mock.Arguments) (*payment.Payment, error) {
	p, _ := args.Get(0).(*payment.Payment)
	return p, args.Error(1)
}

type mockCreatePayment struct{ mockPaymentUseCase }

func (m *mockCreatePayment) Execute(ctx context.Context, req apppayment.CreatePaymentRequest) (*payment.Payment, error) {
	return m.result(m.Called(ctx, req))
}

type mockConfirmPayment struct{ mockPaymentUseCase }

func (m *mockConfirmPayment) Execute(ctx context.Context, req apppayment.ConfirmPaymentRequest) (*payment.Payment, error) {
	return m.result(m.Called(ctx, req))
}

type mockRefundPayment struct{ mockPaymentUseCase }

func (m *mockRefundPayment) Execute(ctx context.Context, req apppayment.RefundPaymentRequest) (*payment.Payment, error) {
	return m.result(m.Called(ctx, req))
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) VerifyReturn(query url.Values) (*gateway.ReturnResult, error) {
	args := m.Called(query)
	r, _ := args.Get(0).(*gateway.ReturnResult)
	return r, args.Error(1)
}
