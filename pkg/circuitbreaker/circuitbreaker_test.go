package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errGateway = errors.New("gateway unavailable")

func tripAfter(n uint32) func(Counts) bool {
	return func(counts Counts) bool { return counts.ConsecutiveFailures >= n }
}

// TestCircuitBreaker_ClosedState 正常放行并计数
func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := NewCircuitBreaker("gateway.test", Config{
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: tripAfter(5),
	})

	for i := 0; i < 10; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("期望成功，实际失败: %v", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("期望状态为CLOSED，实际%s", cb.State())
	}
	if counts := cb.Counts(); counts.TotalSuccesses != 10 {
		t.Errorf("期望成功10次，实际%d次", counts.TotalSuccesses)
	}
}

// TestCircuitBreaker_OpenState 连续失败后快速失败，不再调用下游
func TestCircuitBreaker_OpenState(t *testing.T) {
	cb := NewCircuitBreaker("gateway.test", Config{
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: tripAfter(3),
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errGateway })
	}
	if cb.State() != StateOpen {
		t.Fatalf("期望状态为OPEN，实际%s", cb.State())
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("期望返回ErrOpenState，实际%v", err)
	}
	if called {
		t.Error("熔断器打开时不应该调用实际函数")
	}
}

// TestCircuitBreaker_HalfOpen 超时后探测，成功关闭，失败重新打开
func TestCircuitBreaker_HalfOpen(t *testing.T) {
	newTripped := func() *CircuitBreaker {
		cb := NewCircuitBreaker("gateway.test", Config{
			MaxRequests: 1,
			Interval:    10 * time.Second,
			Timeout:     50 * time.Millisecond,
			ReadyToTrip: tripAfter(2),
		})
		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error { return errGateway })
		}
		time.Sleep(80 * time.Millisecond)
		return cb
	}

	cb := newTripped()
	if cb.State() != StateHalfOpen {
		t.Fatalf("期望HALF_OPEN，实际%s", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("探测请求应放行: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("探测成功后期望CLOSED，实际%s", cb.State())
	}

	cb = newTripped()
	_ = cb.Execute(func() error { return errGateway })
	if cb.State() != StateOpen {
		t.Errorf("探测失败后期望OPEN，实际%s", cb.State())
	}
}

// TestCircuitBreaker_IsSuccessful 业务错误不计入失败
func TestCircuitBreaker_IsSuccessful(t *testing.T) {
	errRejected := errors.New("signature rejected")
	cb := NewCircuitBreaker("gateway.test", Config{
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(2),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
	})

	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return errRejected }); !errors.Is(err, errRejected) {
			t.Fatalf("业务错误应原样返回: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("业务错误不应触发熔断，实际%s", cb.State())
	}
}

// TestCircuitBreaker_StateChangeCallback 状态变化回调顺序
func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	changes := make([]string, 0)

	cb := NewCircuitBreaker("gateway.test", Config{
		Interval:    10 * time.Second,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: tripAfter(3),
	})
	cb.SetStateChangeCallback(func(name string, from State, to State) {
		changes = append(changes, from.String()+"->"+to.String())
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errGateway })
	}
	time.Sleep(80 * time.Millisecond)
	_ = cb.Execute(func() error { return nil })

	expected := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if len(changes) != len(expected) {
		t.Fatalf("期望%d次状态变化，实际%d次: %v", len(expected), len(changes), changes)
	}
	for i, want := range expected {
		if changes[i] != want {
			t.Errorf("第%d次状态变化期望%s，实际%s", i, want, changes[i])
		}
	}
}

// TestCircuitBreaker_FailureRate 基于失败率熔断
func TestCircuitBreaker_FailureRate(t *testing.T) {
	cb := NewCircuitBreaker("gateway.test", Config{
		Interval: time.Hour,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 10 && counts.FailureRate() > 0.5
		},
	})

	for i := 0; i < 10; i++ {
		index := i
		_ = cb.Execute(func() error {
			if index < 4 {
				return nil
			}
			return errGateway
		})
	}

	if cb.State() != StateOpen {
		t.Errorf("期望状态为OPEN（失败率超过50%%），实际%s", cb.State())
	}
}

// BenchmarkCircuitBreaker 基准测试
func BenchmarkCircuitBreaker(b *testing.B) {
	cb := NewCircuitBreaker("bench", Config{Interval: 10 * time.Second, Timeout: 30 * time.Second})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(func() error { return nil })
	}
}
