package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/FongFus/Pharmatech/docs"
	apporder "github.com/FongFus/Pharmatech/internal/application/order"
	apppayment "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/discount"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/domain/transaction"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
	"github.com/FongFus/Pharmatech/internal/infrastructure/eventbus"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/database"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/memory"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/redis"
	grpcserver "github.com/FongFus/Pharmatech/internal/interface/grpc"
	"github.com/FongFus/Pharmatech/internal/interface/http/handler"
	"github.com/FongFus/Pharmatech/internal/interface/http/middleware"
	"github.com/FongFus/Pharmatech/pkg/jwt"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/mq"
	"github.com/FongFus/Pharmatech/pkg/response"
)

// =========================================
// 存储与协调
// =========================================

// storage 按database.driver选择的仓储集合
type storage struct {
	Tx        transaction.Manager
	Carts     cart.Repository
	Catalog   catalog.Reader
	Ledger    inventory.Ledger
	Discounts discount.Repository
	Orders    order.Repository
	Payments  payment.Repository
}

// provideStorage mysql/postgres走gorm，memory使用进程内存储并写入演示数据
func provideStorage(cfg *config.Config, log *zap.Logger) (*storage, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.NewStore()
		cartID := seedDemo(store)
		log.Warn("storage_memory", zap.String("hint", "数据不持久化，仅用于本地运行"), zap.Uint("demo_cart_id", cartID))
		return memoryStorage(store), func() {}, nil
	}

	db, err := database.NewDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return &storage{
		Tx:        database.NewTxManager(db),
		Carts:     database.NewCartRepository(db),
		Catalog:   database.NewCatalogReader(db),
		Ledger:    database.NewLedger(db),
		Discounts: database.NewDiscountRepository(db),
		Orders:    database.NewOrderRepository(db),
		Payments:  database.NewPaymentRepository(db),
	}, cleanup, nil
}

func memoryStorage(store *memory.Store) *storage {
	return &storage{
		Tx:        store,
		Carts:     memory.NewCartRepository(store),
		Catalog:   memory.NewCatalogReader(store),
		Ledger:    memory.NewLedger(store),
		Discounts: memory.NewDiscountRepository(store),
		Orders:    memory.NewOrderRepository(store),
		Payments:  memory.NewPaymentRepository(store),
	}
}

// coordination 分布式锁、幂等键、对账队列
// 多实例部署必须启用Redis，否则只在本进程内有效
type coordination struct {
	Locker      apppayment.Locker
	Idempotency apporder.IdempotencyStore
	Pending     payment.PendingTracker
}

func provideCoordination(cfg *config.Config, log *zap.Logger) (*coordination, func(), error) {
	if !cfg.Redis.Enabled {
		log.Warn("coordination_in_process", zap.String("hint", "未启用Redis，锁与幂等键仅在单实例内有效"))
		return &coordination{
			Locker:      memory.NewLocker(),
			Idempotency: memory.NewIdempotencyStore(),
			Pending:     memory.NewPendingTracker(),
		}, func() {}, nil
	}

	client, err := redis.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return &coordination{
		Locker:      redis.NewLocker(client),
		Idempotency: redis.NewIdempotencyStore(client),
		Pending:     redis.NewPendingTracker(client),
	}, func() { client.Close() }, nil
}

// =========================================
// 事件
// =========================================

// provideEventBus 审计日志总是订阅；启用RabbitMQ时转发到topic exchange
func provideEventBus(cfg *config.Config, log *zap.Logger) (*eventbus.Bus, func(), error) {
	bus := eventbus.NewBus(eventbus.Options{
		QueueSize:      cfg.EventBus.QueueSize,
		Concurrency:    cfg.EventBus.Concurrency,
		HandlerTimeout: cfg.EventBus.HandlerTimeout,
	}, log)
	bus.Subscribe(eventbus.Wildcard, eventbus.AuditLog)

	var publisher *mq.Publisher
	if cfg.RabbitMQ.Enabled {
		p, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, "topic", log)
		if err != nil {
			return nil, nil, err
		}
		publisher = p
		bus.Subscribe(eventbus.Wildcard, eventbus.Forwarder(publisher))
	}

	bus.Start(context.Background())

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bus.Stop(ctx)
		if publisher != nil {
			publisher.Close()
		}
	}
	return bus, cleanup, nil
}

// =========================================
// 参数
// =========================================

func provideVerifier(cfg *config.Config) *jwt.Verifier {
	return jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
}

func provideOrderOptions(cfg *config.Config) apporder.Options {
	return apporder.Options{
		LockTimeout:     cfg.Order.LockTimeout,
		CodeAttempts:    cfg.Order.CodeAttempts,
		CheckoutTimeout: cfg.Order.CheckoutTimeout,
		IdempotencyTTL:  cfg.Order.IdempotencyTTL,
	}
}

func providePaymentOptions(cfg *config.Config) apppayment.Options {
	return apppayment.Options{
		GatewayTimeout: cfg.Payment.Timeout,
		ReconcileAfter: cfg.Payment.ReconcileAfter,
		RefundLockTTL:  cfg.Payment.RefundLockTTL,
		ReturnURL:      cfg.Payment.ReturnURL,
	}
}

func provideReconcilerOptions(cfg *config.Config) apppayment.ReconcilerOptions {
	return apppayment.ReconcilerOptions{
		Interval:   cfg.Reconcile.Interval,
		BatchSize:  cfg.Reconcile.BatchSize,
		RetryDelay: cfg.Reconcile.RetryDelay,
	}
}

func provideGRPCServer(cfg *config.Config, log *zap.Logger) *grpcserver.Server {
	return grpcserver.NewServer(cfg.GRPC.Port, log)
}

// =========================================
// HTTP
// =========================================

// provideRouter 创建Gin引擎并注册路由
// 中间件顺序：Recovery → Tracing → Logger → Metrics，Logger依赖Tracing写入的span
func provideRouter(
	cfg *config.Config,
	log *zap.Logger,
	auth *middleware.AuthMiddleware,
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(), middleware.Logger(log), middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong", "status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Server.Mode != "release" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		orders.Use(auth.RequireAuth())
		{
			orders.POST("/checkout", orderHandler.Checkout)
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:code", orderHandler.GetOrder)
			orders.POST("/:code/cancel", orderHandler.CancelOrder)
		}

		// 网关回跳不带令牌，靠签名校验
		v1.GET("/payments/vnpay/return", paymentHandler.VNPayReturn)

		payments := v1.Group("/payments")
		payments.Use(auth.RequireAuth())
		{
			payments.POST("", paymentHandler.CreatePayment)
			payments.POST("/:id/confirm", paymentHandler.ConfirmPayment)
			payments.POST("/:id/refund", paymentHandler.RefundPayment)
		}
	}

	return r
}

// =========================================
// 应用
// =========================================

// app 组装完成的进程组件
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	router     *gin.Engine
	reconciler *apppayment.Reconciler
	grpc       *grpcserver.Server
}

func newApp(cfg *config.Config, log *zap.Logger, router *gin.Engine, reconciler *apppayment.Reconciler, grpc *grpcserver.Server) *app {
	return &app{cfg: cfg, log: log, router: router, reconciler: reconciler, grpc: grpc}
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Options{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
		Service:      cfg.Server.Name,
		Env:          cfg.Server.Env,
	})
}
