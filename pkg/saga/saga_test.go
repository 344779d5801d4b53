package saga

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestSaga_Execute_Success 所有步骤成功，不触发补偿
func TestSaga_Execute_Success(t *testing.T) {
	executed := make([]string, 0)

	s := NewSaga(5 * time.Second)
	s.AddStep("create_order",
		func(ctx context.Context) error {
			executed = append(executed, "create_order")
			return nil
		},
		func(ctx context.Context) error {
			executed = append(executed, "discard_order")
			return nil
		},
	)
	s.AddStep("open_checkout",
		func(ctx context.Context) error {
			executed = append(executed, "open_checkout")
			return nil
		},
		nil,
	)

	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("Saga执行失败: %v", err)
	}

	if len(executed) != 2 || executed[0] != "create_order" || executed[1] != "open_checkout" {
		t.Errorf("执行顺序错误: %v", executed)
	}
	if s.Compensated() {
		t.Error("成功时不应触发补偿")
	}
}

// TestSaga_Execute_FailureAndCompensate 第三步失败，前两步逆序补偿
func TestSaga_Execute_FailureAndCompensate(t *testing.T) {
	executed := make([]string, 0)
	gatewayDown := errors.New("gateway unavailable")

	s := NewSaga(5 * time.Second)
	s.AddStep("reserve_stock",
		func(ctx context.Context) error {
			executed = append(executed, "reserve_stock")
			return nil
		},
		func(ctx context.Context) error {
			executed = append(executed, "restock")
			return nil
		},
	)
	s.AddStep("create_order",
		func(ctx context.Context) error {
			executed = append(executed, "create_order")
			return nil
		},
		func(ctx context.Context) error {
			executed = append(executed, "discard_order")
			return nil
		},
	)
	s.AddStep("open_checkout",
		func(ctx context.Context) error {
			executed = append(executed, "open_checkout")
			return gatewayDown
		},
		func(ctx context.Context) error {
			executed = append(executed, "close_checkout")
			return nil
		},
	)

	err := s.Execute(context.Background())
	if err == nil {
		t.Fatal("Saga应该失败但返回成功")
	}
	if !errors.Is(err, gatewayDown) {
		t.Errorf("返回的错误应包装原始错误, got: %v", err)
	}

	expected := []string{"reserve_stock", "create_order", "open_checkout", "discard_order", "restock"}
	if len(executed) != len(expected) {
		t.Fatalf("期望执行%d个步骤，实际执行%d个: %v", len(expected), len(executed), executed)
	}
	for i, step := range expected {
		if executed[i] != step {
			t.Errorf("步骤%d期望'%s'，实际'%s'", i, step, executed[i])
		}
	}
	if s.CompensationError() != nil {
		t.Errorf("补偿不应出错: %v", s.CompensationError())
	}
}

// TestSaga_Execute_Timeout 超时触发补偿
func TestSaga_Execute_Timeout(t *testing.T) {
	executed := make([]string, 0)

	s := NewSaga(100 * time.Millisecond)
	s.AddStep("fast",
		func(ctx context.Context) error {
			executed = append(executed, "fast")
			return nil
		},
		func(ctx context.Context) error {
			if ctx.Err() != nil {
				t.Error("补偿context不应继承超时")
			}
			executed = append(executed, "fast_compensate")
			return nil
		},
	)
	s.AddStep("slow",
		func(ctx context.Context) error {
			select {
			case <-time.After(time.Second):
				executed = append(executed, "slow")
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		nil,
	)

	if err := s.Execute(context.Background()); err == nil {
		t.Fatal("Saga应该超时但返回成功")
	}

	if executed[len(executed)-1] != "fast_compensate" {
		t.Errorf("期望最后一步是补偿，实际: %v", executed)
	}
}

// TestSaga_CompensationError 补偿失败继续执行其余补偿，并汇总错误
func TestSaga_CompensationError(t *testing.T) {
	restocked := false
	discardErr := errors.New("db down")

	s := NewSaga(0)
	s.AddStep("restock_guard", func(ctx context.Context) error { return nil }, func(ctx context.Context) error {
		restocked = true
		return nil
	})
	s.AddStep("create_order", func(ctx context.Context) error { return nil }, func(ctx context.Context) error {
		return discardErr
	})
	s.AddStep("open_checkout", func(ctx context.Context) error { return errors.New("boom") }, nil)

	if err := s.Execute(context.Background()); err == nil {
		t.Fatal("期望失败")
	}
	if !restocked {
		t.Error("前序补偿应继续执行")
	}
	if !errors.Is(s.CompensationError(), discardErr) {
		t.Errorf("补偿错误未被记录: %v", s.CompensationError())
	}
}

// BenchmarkSaga_Execute 基准测试
func BenchmarkSaga_Execute(b *testing.B) {
	s := NewSaga(5 * time.Second)
	s.AddStep("step1", func(ctx context.Context) error { return nil }, nil)
	s.AddStep("step2", func(ctx context.Context) error { return nil }, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Execute(context.Background())
		s.executed = nil
	}
}
