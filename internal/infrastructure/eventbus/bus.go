// Package eventbus 进程内事件总线
//
// 用例在事务提交后Publish，总线异步分发给订阅者。
// 不持久化：进程退出时队列中的事件会丢失，需要可靠投递的订阅者（消息队列转发）自行重试。
package eventbus

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/event"
	"github.com/FongFus/Pharmatech/pkg/logger"
	"github.com/FongFus/Pharmatech/pkg/metrics"
)

// Wildcard 订阅所有事件
const Wildcard = "*"

// Options 总线参数
type Options struct {
	QueueSize      int           // 默认1024
	Concurrency    int           // 单个事件的并发处理数，默认8
	HandlerTimeout time.Duration // 默认30s
}

// Bus 内存事件总线
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]event.Handler
	queue   chan event.Event
	closed  bool
	stopped chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc

	concurrency    int
	handlerTimeout time.Duration
	log            *zap.Logger
}

// NewBus 创建总线
func NewBus(opts Options, log *zap.Logger) *Bus {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs:           make(map[string][]event.Handler),
		queue:          make(chan event.Event, opts.QueueSize),
		stopped:        make(chan struct{}),
		concurrency:    opts.Concurrency,
		handlerTimeout: opts.HandlerTimeout,
		log:            log.With(zap.String("component", "event_bus")),
	}
}

// Subscribe 订阅事件，eventName为Wildcard时接收所有事件
func (b *Bus) Subscribe(eventName string, h event.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

// Start 启动分发协程
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.mu.Lock()
		b.cancel = cancel
		b.mu.Unlock()
		go b.dispatchLoop(bg)
		b.log.Info("event_bus_started")
	})
}

// Stop 停止接收新事件，等待队列中剩余事件分发完或ctx到期
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		started := b.cancel != nil
		b.mu.Unlock()

		if !started {
			return
		}
		select {
		case <-b.stopped:
		case <-ctx.Done():
			b.log.Warn("event_bus_stop_timeout", zap.Int("pending", len(b.queue)))
		}
		if b.cancel != nil {
			b.cancel()
		}
		b.log.Info("event_bus_stopped")
	})
}

// Publish 入队，队列满时阻塞到ctx结束
func (b *Bus) Publish(ctx context.Context, events ...event.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.log.Warn("event_bus_closed_drop", zap.Int("events", len(events)))
		return nil
	}

	for _, e := range events {
		if e == nil {
			continue
		}
		select {
		case b.queue <- e:
			logger.FromContextOr(ctx, b.log).Debug("event_enqueued", zap.String("event", e.Name()))
		case <-ctx.Done():
			logger.FromContextOr(ctx, b.log).Warn("event_enqueue_aborted",
				zap.String("event", e.Name()),
				zap.Error(ctx.Err()),
			)
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.stopped)
	for e := range b.queue {
		b.fanout(ctx, e)
	}
}

func (b *Bus) handlers(name string) []event.Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := append([]event.Handler(nil), b.subs[name]...)
	return append(hs, b.subs[Wildcard]...)
}

func (b *Bus) fanout(ctx context.Context, e event.Event) {
	name := e.Name()
	handlers := b.handlers(name)
	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", zap.String("event", name))
		return
	}

	log := b.log.With(zap.String("event", name))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func(h event.Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("event_handler_panic",
						zap.Any("panic", r),
						zap.String("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
			defer cancel()
			if err := h(logger.ContextWithLogger(hctx, log), e); err != nil {
				log.Warn("event_handler_error", zap.Error(err))
			}
		}(h)
	}
	wg.Wait()

	metrics.RecordEventPublished(name, "bus")
	log.Debug("event_fanned_out", zap.Int("handlers", len(handlers)))
}
