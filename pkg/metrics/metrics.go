// Package metrics Prometheus指标
//
// 指标分组：
//   - HTTP：请求数、耗时、并发
//   - 下单：成功/失败（按原因）、耗时
//   - 支付：状态流转、网关调用结果与耗时、熔断器状态
//   - Saga、事件分发
//
// 命名规范：Counter以_total结尾，Histogram以单位结尾。
// 标签只用有限取值（provider、reason、status），不要用order_code、user_id。
//
// 使用：
//
//	metrics.InitMetrics()
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// HTTP

	HTTPRequestsTotal      *prometheus.CounterVec   // method, path, status
	HTTPRequestDuration    *prometheus.HistogramVec // method, path
	HTTPRequestsInProgress prometheus.Gauge

	// 下单

	OrdersCreatedTotal    prometheus.Counter
	OrdersFailedTotal     *prometheus.CounterVec // reason
	OrderCreationDuration prometheus.Histogram
	OrdersCancelledTotal  prometheus.Counter
	DiscountsAppliedTotal prometheus.Counter
	CheckoutsInProgress   prometheus.Gauge

	// 支付

	// PaymentTransitionsTotal 支付状态流转次数
	// 标签：method（vnpay/momo/stripe/sandbox）、to（completed/failed/refunded/pending）
	PaymentTransitionsTotal *prometheus.CounterVec

	// GatewayRequestsTotal 网关调用
	// 标签：provider、op（create_checkout/confirm/refund）、result（success/failure/timeout/rejected）
	GatewayRequestsTotal *prometheus.CounterVec

	GatewayRequestDuration *prometheus.HistogramVec // provider, op

	// CircuitBreakerState 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	PendingPaymentsReconciled *prometheus.CounterVec // outcome

	// Saga

	SagaExecutionsTotal    *prometheus.CounterVec // result
	SagaCompensationsTotal prometheus.Counter

	// 事件

	EventsPublishedTotal *prometheus.CounterVec // event, sink
)

// InitMetrics 注册所有指标到默认Registry，可重复调用
func InitMetrics() {
	initOnce.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP请求总数"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP请求耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "http_requests_in_progress", Help: "正在处理的HTTP请求数"},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Name: "orders_created_total", Help: "订单创建总数"},
	)
	OrdersFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_failed_total", Help: "订单创建失败总数"},
		[]string{"reason"},
	)
	// 下单在锁内完成，通常几十毫秒
	OrderCreationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_creation_duration_seconds",
			Help:    "订单创建耗时（秒）",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
	OrdersCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{Name: "orders_cancelled_total", Help: "订单取消总数"},
	)
	DiscountsAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Name: "discounts_applied_total", Help: "优惠码使用总数"},
	)
	CheckoutsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "checkouts_in_progress", Help: "正在处理的结算数"},
	)

	PaymentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "payment_transitions_total", Help: "支付状态流转次数"},
		[]string{"method", "to"},
	)
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "payment_gateway_requests_total", Help: "支付网关调用次数"},
		[]string{"provider", "op", "result"},
	)
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "支付网关调用耗时（秒）",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "op"},
	)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "circuit_breaker_state", Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）"},
		[]string{"name"},
	)
	PendingPaymentsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "pending_payments_reconciled_total", Help: "对账处理的待支付记录数"},
		[]string{"outcome"},
	)

	SagaExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "saga_executions_total", Help: "Saga执行总数"},
		[]string{"result"},
	)
	SagaCompensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Name: "saga_compensations_total", Help: "Saga补偿执行总数"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "events_published_total", Help: "领域事件发布次数"},
		[]string{"event", "sink"},
	)
}

// IncCounter 递增Counter
func IncCounter(counter prometheus.Counter) {
	counter.Inc()
}

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	counter.With(labels).Inc()
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	gauge.Dec()
}

// SetGauge 设置Gauge值
func SetGauge(gauge prometheus.Gauge, value float64) {
	gauge.Set(value)
}

// SetGaugeVec 设置GaugeVec值（带标签）
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	gauge.With(labels).Set(value)
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	histogram.Observe(value)
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	histogram.With(labels).Observe(value)
}
