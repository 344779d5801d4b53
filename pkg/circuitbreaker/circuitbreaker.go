// Package circuitbreaker 支付网关熔断
//
// 网关持续失败时快速拒绝新的支付请求，避免订单阻塞在外部调用上。
// CLOSED下累计失败，满足ReadyToTrip进入OPEN；OPEN持续Timeout后进入HALF_OPEN，
// 放行MaxRequests个探测，任一成功回到CLOSED，任一失败重新OPEN。
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpenState 熔断中，请求未发出
var ErrOpenState = errors.New("circuit breaker is open")

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "CLOSED",
	StateOpen:     "OPEN",
	StateHalfOpen: "HALF_OPEN",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Config 零值字段取默认：MaxRequests=1，连续失败5次熔断，err==nil即成功
type Config struct {
	MaxRequests uint32
	// Interval CLOSED下计数窗口，0表示计数只在状态切换时清零
	Interval time.Duration
	Timeout  time.Duration

	ReadyToTrip func(counts Counts) bool
	// IsSuccessful 网关明确拒绝（验签失败、参数错误）应视为成功，不代表网关不可用
	IsSuccessful func(err error) bool
}

// Counts 当前窗口内的请求统计
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// FailureRate 窗口内失败占比
func (c *Counts) FailureRate() float64 {
	if c.Requests == 0 {
		return 0
	}
	return float64(c.TotalFailures) / float64(c.Requests)
}

// Reset 清零
func (c *Counts) Reset() { *c = Counts{} }

func (c *Counts) record(ok bool) {
	if ok {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		return
	}
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// CircuitBreaker 每个网关一个实例
type CircuitBreaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	state    State
	epoch    uint64 // 状态切换时递增，迟到的结果按epoch丢弃
	counts   Counts
	deadline time.Time // CLOSED为窗口结束，OPEN为进入HALF_OPEN的时刻
	listener func(name string, from, to State)
}

// NewCircuitBreaker 创建熔断器
//
//	cb := NewCircuitBreaker("gateway.vnpay", Config{Timeout: 15 * time.Second})
func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures >= 5 }
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return err == nil }
	}

	cb := &CircuitBreaker{name: name, cfg: cfg, now: time.Now, state: StateClosed}
	cb.deadline = cb.windowEnd(cb.now())
	return cb
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// SetStateChangeCallback 回调在锁内执行，不能回调cb自身
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(name string, from State, to State)) {
	cb.mu.Lock()
	cb.listener = fn
	cb.mu.Unlock()
}

// Execute 熔断中直接返回ErrOpenState，否则执行fn并记录结果
func (cb *CircuitBreaker) Execute(fn func() error) error {
	epoch, err := cb.acquire()
	if err != nil {
		return err
	}
	err = fn()
	cb.report(epoch, cb.cfg.IsSuccessful(err))
	return err
}

func (cb *CircuitBreaker) acquire() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance(cb.now())
	switch {
	case cb.state == StateOpen:
		return cb.epoch, ErrOpenState
	case cb.state == StateHalfOpen && cb.counts.Requests >= cb.cfg.MaxRequests:
		return cb.epoch, ErrOpenState
	}
	cb.counts.Requests++
	return cb.epoch, nil
}

func (cb *CircuitBreaker) report(epoch uint64, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.advance(now)
	if epoch != cb.epoch {
		return
	}

	cb.counts.record(ok)
	switch cb.state {
	case StateHalfOpen:
		if ok {
			cb.transition(StateClosed, now)
		} else {
			cb.transition(StateOpen, now)
		}
	case StateClosed:
		if !ok && cb.cfg.ReadyToTrip(cb.counts) {
			cb.transition(StateOpen, now)
		}
	}
}

// advance 处理时间驱动的变化：CLOSED窗口滚动，OPEN到期转HALF_OPEN
func (cb *CircuitBreaker) advance(now time.Time) {
	if cb.deadline.IsZero() || !now.After(cb.deadline) {
		return
	}
	switch cb.state {
	case StateClosed:
		cb.counts.Reset()
		cb.deadline = cb.windowEnd(now)
	case StateOpen:
		cb.transition(StateHalfOpen, now)
	}
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.epoch++
	cb.counts.Reset()

	switch to {
	case StateClosed:
		cb.deadline = cb.windowEnd(now)
	case StateOpen:
		cb.deadline = now.Add(cb.cfg.Timeout)
	default:
		cb.deadline = time.Time{}
	}

	if cb.listener != nil {
		cb.listener(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) windowEnd(now time.Time) time.Time {
	if cb.cfg.Interval <= 0 {
		return time.Time{}
	}
	return now.Add(cb.cfg.Interval)
}

// State 当前状态，会先推进到期的状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance(cb.now())
	return cb.state
}

// Counts 当前窗口统计的副本
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}
