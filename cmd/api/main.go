package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	apporder "github.com/FongFus/Pharmatech/internal/application/order"
	apppayment "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
	"github.com/FongFus/Pharmatech/internal/infrastructure/gateway"
	"github.com/FongFus/Pharmatech/internal/interface/http/handler"
	"github.com/FongFus/Pharmatech/internal/interface/http/middleware"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

// @title        Pharmatech 订单履约API
// @version      1.0
// @description  结算、库存扣减、优惠码核销、支付状态机
// @BasePath     /api/v1
// @securityDefinitions.apikey BearerAuth
// @in           header
// @name         Authorization
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 日志
	logger, err := provideLogger(cfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	// 3. 链路追踪
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(tracing.Options{
			ServiceName: cfg.Server.Name,
			Environment: cfg.Server.Env,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			logger.Fatal("tracer_init_failed", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// 4. 依赖注入（手动组装，与wire.go中的Provider一致）
	a, cleanup, err := buildApp(cfg, logger)
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}
	defer cleanup()

	// 5. 启动
	if err := a.run(); err != nil {
		logger.Error("app_exited", zap.Error(err))
	}
}

// buildApp 依赖链：Storage/Coordination ← UseCase ← Handler ← Router
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	store, closeStore, err := provideStorage(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return assemble(cfg, logger, store, closeStore)
}

// assemble 在给定存储上组装其余组件，失败时负责释放存储
func assemble(cfg *config.Config, logger *zap.Logger, store *storage, closeStore func()) (*app, func(), error) {
	coord, closeCoord, err := provideCoordination(cfg, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	bus, closeBus, err := provideEventBus(cfg, logger)
	if err != nil {
		closeCoord()
		closeStore()
		return nil, nil, err
	}
	cleanup := func() {
		closeBus()
		closeCoord()
		closeStore()
	}

	gateways, err := gateway.NewRegistry(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// 应用层
	paymentOpts := providePaymentOptions(cfg)
	createPayment := apppayment.NewCreatePaymentUseCase(store.Tx, store.Orders, store.Payments, gateways, coord.Pending, paymentOpts, logger)
	confirmPayment := apppayment.NewConfirmPaymentUseCase(store.Tx, store.Orders, store.Payments, gateways, coord.Pending, bus, paymentOpts, logger)
	refundPayment := apppayment.NewRefundPaymentUseCase(store.Tx, store.Orders, store.Payments, store.Ledger, gateways, coord.Locker, bus, paymentOpts, logger)
	reconciler := apppayment.NewReconciler(coord.Pending, confirmPayment, provideReconcilerOptions(cfg), logger)

	orderOpts := provideOrderOptions(cfg)
	resolver := cart.NewResolver(store.Carts, store.Catalog)
	createOrder := apporder.NewCreateOrderUseCase(store.Tx, resolver, store.Carts, store.Ledger, store.Discounts, store.Orders, bus, orderOpts, logger)
	checkout := apporder.NewCheckoutUseCase(createOrder, createPayment, coord.Idempotency, orderOpts, logger)
	cancelOrder := apporder.NewCancelOrderUseCase(store.Tx, store.Orders, store.Payments, store.Ledger, confirmPayment, refundPayment, bus, logger)
	getOrder := apporder.NewGetOrderUseCase(store.Orders, store.Payments)
	listOrders := apporder.NewListOrdersUseCase(store.Orders)

	// 接口层
	orderHandler := handler.NewOrderHandler(checkout, getOrder, listOrders, cancelOrder)
	paymentHandler := handler.NewPaymentHandler(createPayment, confirmPayment, refundPayment, gateways)
	auth := middleware.NewAuthMiddleware(provideVerifier(cfg))
	router := provideRouter(cfg, logger, auth, orderHandler, paymentHandler)

	return newApp(cfg, logger, router, reconciler, provideGRPCServer(cfg, logger)), cleanup, nil
}

// run 启动HTTP、gRPC、对账，收到SIGINT/SIGTERM后优雅退出
func (a *app) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		a.log.Info("http_server_started", zap.String("addr", srv.Addr), zap.String("mode", a.cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP服务异常退出: %w", err)
		}
	}()

	if a.cfg.GRPC.Port > 0 {
		go func() {
			if err := a.grpc.Serve(); err != nil {
				errCh <- fmt.Errorf("gRPC服务异常退出: %w", err)
			}
		}()
		a.grpc.SetServing(true)
	}

	reconcileDone := make(chan struct{})
	if a.cfg.Reconcile.Enabled {
		go func() {
			defer close(reconcileDone)
			a.reconciler.Run(ctx)
		}()
	} else {
		close(reconcileDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown_signal_received")
	case runErr = <-errCh:
		stop()
	}

	if a.cfg.GRPC.Port > 0 {
		a.grpc.SetServing(false)
		a.grpc.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http_shutdown_failed", zap.Error(err))
	}
	<-reconcileDone

	a.log.Info("server_stopped")
	return runErr
}
