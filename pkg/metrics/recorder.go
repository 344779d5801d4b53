package metrics

import "time"

// 业务侧记录函数，首次调用时自动注册指标

// RecordOrderCreated 下单成功
func RecordOrderCreated(elapsed time.Duration, discounted bool) {
	InitMetrics()
	OrdersCreatedTotal.Inc()
	OrderCreationDuration.Observe(elapsed.Seconds())
	if discounted {
		DiscountsAppliedTotal.Inc()
	}
}

// RecordOrderFailed 下单失败，reason取错误类别
func RecordOrderFailed(reason string) {
	InitMetrics()
	OrdersFailedTotal.WithLabelValues(reason).Inc()
}

// RecordOrderCancelled 订单取消
func RecordOrderCancelled() {
	InitMetrics()
	OrdersCancelledTotal.Inc()
}

// TrackCheckout 结算并发数，返回的函数在结束时调用
func TrackCheckout() func() {
	InitMetrics()
	CheckoutsInProgress.Inc()
	return CheckoutsInProgress.Dec
}

// RecordPaymentTransition 支付状态流转
func RecordPaymentTransition(method, to string) {
	InitMetrics()
	PaymentTransitionsTotal.WithLabelValues(method, to).Inc()
}

// RecordGatewayCall 网关调用结果与耗时
func RecordGatewayCall(provider, op, result string, elapsed time.Duration) {
	InitMetrics()
	GatewayRequestsTotal.WithLabelValues(provider, op, result).Inc()
	GatewayRequestDuration.WithLabelValues(provider, op).Observe(elapsed.Seconds())
}

// RecordCircuitBreakerState 熔断器状态（0/1/2）
func RecordCircuitBreakerState(name string, state int) {
	InitMetrics()
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordReconcile 对账结果
func RecordReconcile(outcome string) {
	InitMetrics()
	PendingPaymentsReconciled.WithLabelValues(outcome).Inc()
}

// RecordSaga Saga执行结果
func RecordSaga(success, compensated bool) {
	InitMetrics()
	result := "success"
	if !success {
		result = "failure"
	}
	SagaExecutionsTotal.WithLabelValues(result).Inc()
	if compensated {
		SagaCompensationsTotal.Inc()
	}
}

// RecordEventPublished 事件投递
func RecordEventPublished(event, sink string) {
	InitMetrics()
	EventsPublishedTotal.WithLabelValues(event, sink).Inc()
}
