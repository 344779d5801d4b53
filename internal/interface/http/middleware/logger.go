package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/tracing"
)

const (
	headerRequestID = "X-Request-ID"
	slowRequest     = 3 * time.Second
)

// Logger 请求日志中间件
// 1. 沿用上游的X-Request-ID，没有则生成
// 2. 请求级logger（request_id、trace_id）注入context，用例层通过logger.FromContext取得
// 3. 请求结束输出一条结构化访问日志
//
// 必须注册在Tracing之后，才能取到trace_id
func Logger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(headerRequestID, requestID)

		ctx := c.Request.Context()
		reqLog := base.With(zap.String("request_id", requestID))
		if traceID := tracing.ExtractTraceID(ctx); traceID != "" {
			reqLog = logger.WithTrace(reqLog, traceID, tracing.ExtractSpanID(ctx))
		}
		c.Request = c.Request.WithContext(logger.ContextWithLogger(ctx, reqLog))

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			reqLog.Error("http_request", fields...)
		case latency > slowRequest:
			reqLog.Warn("http_request_slow", fields...)
		default:
			reqLog.Info("http_request", fields...)
		}
	}
}
