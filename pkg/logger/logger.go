// Package logger 基于zap的结构化日志
//
// 约定：
//   - 生产环境输出JSON（ts/msg字段、RFC3339Nano时间、小写级别）
//   - 开发环境可切换为console格式
//   - 请求级logger通过context传递（见context.go）
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置（与config.LogConfig字段一一对应）
type Options struct {
	Level        string // debug | info | warn | error
	Format       string // console | json
	Output       string // stdout | stderr | /path/to/file
	EnableCaller bool
	Service      string
	Env          string
}

// New 创建logger
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	level, err := zapcore.ParseLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", opts.Level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if opts.Format == "console" {
		cfg.Encoding = "console"
	}

	output := defaultString(opts.Output, "stdout")
	if output != "stdout" && output != "stderr" {
		if err := ensureLogFile(output); err != nil {
			return nil, fmt.Errorf("准备日志文件失败: %w", err)
		}
	}
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{output}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.DisableCaller = !opts.EnableCaller

	cfg.InitialFields = map[string]any{}
	if opts.Service != "" {
		cfg.InitialFields["service"] = opts.Service
	}
	if opts.Env != "" {
		cfg.InitialFields["env"] = opts.Env
	}

	return cfg.Build()
}

// MustNew 同New，失败时panic（仅用于main）
func MustNew(opts Options) *zap.Logger {
	l, err := New(opts)
	if err != nil {
		panic(err)
	}
	return l
}

// WithTrace 附加trace_id/span_id，缺失时填unknown
func WithTrace(l *zap.Logger, traceID, spanID string) *zap.Logger {
	if l == nil {
		l = zap.L()
	}
	return l.With(
		zap.String("trace_id", defaultString(traceID, "unknown")),
		zap.String("span_id", defaultString(spanID, "unknown")),
	)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func ensureLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
