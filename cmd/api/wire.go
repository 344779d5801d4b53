//go:build wireinject
// +build wireinject

// Wire依赖注入配置
//
// main.go中的buildApp是同一依赖图的手写版本，修改Provider时两边保持一致。
// 生成：wire gen ./cmd/api

package main

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	apporder "github.com/FongFus/Pharmatech/internal/application/order"
	apppayment "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
	"github.com/FongFus/Pharmatech/internal/infrastructure/eventbus"
	"github.com/FongFus/Pharmatech/internal/infrastructure/gateway"
	"github.com/FongFus/Pharmatech/internal/interface/http/handler"
	"github.com/FongFus/Pharmatech/internal/interface/http/middleware"
)

// infrastructureSet 存储、协调、事件、网关
var infrastructureSet = wire.NewSet(
	provideStorage,
	wire.FieldsOf(new(*storage), "Tx", "Carts", "Catalog", "Ledger", "Discounts", "Orders", "Payments"),
	provideCoordination,
	wire.FieldsOf(new(*coordination), "Locker", "Idempotency", "Pending"),
	provideEventBus,
	wire.Bind(new(event.Publisher), new(*eventbus.Bus)),
	gateway.NewRegistry,
	wire.Bind(new(payment.GatewayResolver), new(*gateway.Registry)),
)

// paymentSet 支付用例
var paymentSet = wire.NewSet(
	providePaymentOptions,
	provideReconcilerOptions,
	apppayment.NewCreatePaymentUseCase,
	apppayment.NewConfirmPaymentUseCase,
	apppayment.NewRefundPaymentUseCase,
	apppayment.NewReconciler,
)

// orderSet 订单用例
var orderSet = wire.NewSet(
	provideOrderOptions,
	cart.NewResolver,
	apporder.NewCreateOrderUseCase,
	apporder.NewCheckoutUseCase,
	apporder.NewCancelOrderUseCase,
	apporder.NewGetOrderUseCase,
	apporder.NewListOrdersUseCase,
	wire.Bind(new(apporder.PaymentCreator), new(*apppayment.CreatePaymentUseCase)),
	wire.Bind(new(apporder.Refunder), new(*apppayment.RefundPaymentUseCase)),
	wire.Bind(new(apporder.PaymentConfirmer), new(*apppayment.ConfirmPaymentUseCase)),
)

// interfaceSet HTTP与gRPC
var interfaceSet = wire.NewSet(
	provideVerifier,
	middleware.NewAuthMiddleware,
	handler.NewOrderHandler,
	handler.NewPaymentHandler,
	provideRouter,
	provideGRPCServer,
)

// InitializeApp 组装应用，cleanup按创建的逆序释放连接
func InitializeApp(cfg *config.Config, log *zap.Logger) (*app, func(), error) {
	wire.Build(
		infrastructureSet,
		paymentSet,
		orderSet,
		interfaceSet,
		newApp,
	)
	return nil, nil, nil
}
