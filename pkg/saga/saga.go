// Package saga 顺序执行一组步骤，失败时逆序补偿已完成的步骤
//
// 用在下单流程：本地事务创建订单 → 调用支付网关创建收银台，
// 网关失败时补偿订单（回补库存、释放优惠码次数、恢复购物车）。
//
// 要求：
//   - 补偿操作必须幂等（可能被重试）
//   - 补偿只依赖自身Action的结果，通过闭包捕获
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/pkg/logger"
)

// Step Saga中的一个步骤
type Step struct {
	Name       string                          // 步骤名称（用于日志）
	Action     func(ctx context.Context) error // 正向操作
	Compensate func(ctx context.Context) error // 补偿操作，可为nil
}

// Saga 一次Saga执行
type Saga struct {
	steps    []Step
	executed []Step
	timeout  time.Duration
	log      *zap.Logger

	compensated bool
	compErr     error
}

// NewSaga 创建Saga
//
//	s := saga.NewSaga(30 * time.Second)
//	s.AddStep("create_order", createOrder, discardOrder)
//	s.AddStep("open_checkout", openCheckout, nil)
//	err := s.Execute(ctx)
func NewSaga(timeout time.Duration) *Saga {
	return &Saga{
		steps:   make([]Step, 0),
		timeout: timeout,
	}
}

// WithLogger 设置补偿失败时使用的logger（默认取context中的logger）
func (s *Saga) WithLogger(l *zap.Logger) *Saga {
	s.log = l
	return s
}

// AddStep 添加步骤，按添加顺序执行，逆序补偿
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, Step{
		Name:       name,
		Action:     action,
		Compensate: compensate,
	})
}

// Execute 执行Saga
//
// 某步失败或整体超时时触发补偿，返回的错误包装了失败原因，
// 调用方可用errors.As取出领域错误。补偿本身的错误通过CompensationError获取。
func (s *Saga) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		select {
		case <-ctx.Done():
			// 补偿不受原context超时影响
			s.compensate(context.WithoutCancel(ctx))
			return fmt.Errorf("saga超时: %w", ctx.Err())
		default:
		}

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				s.compensate(context.WithoutCancel(ctx))
				return fmt.Errorf("步骤[%d:%s]执行失败: %w", i, step.Name, err)
			}
		}

		s.executed = append(s.executed, step)
	}

	return nil
}

// Compensated 是否执行过补偿
func (s *Saga) Compensated() bool {
	return s.compensated
}

// CompensationError 补偿过程中的错误（多个时合并）
func (s *Saga) CompensationError() error {
	return s.compErr
}

// compensate 逆序执行补偿，某个补偿失败不影响后续补偿
func (s *Saga) compensate(ctx context.Context) {
	s.compensated = true
	log := logger.FromContextOr(ctx, s.log)

	var errs []error
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			// 需要人工介入
			log.Error("saga_compensation_failed",
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}

	s.compErr = errors.Join(errs...)
	s.executed = nil
}
