package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/codelieche/analytics/pkg/utils/logger"
	"go.uber.org/zap"
)

// WorkerPool 并发数受限的任务池
//
// 用信号量限制同时执行的任务数：
//   - TryGo 没有空闲槽位时立即返回false（调度器下个周期再投递）
//   - Go 在后台等待槽位
//   - Run 同步执行并等待结果，ctx取消时提前返回
type WorkerPool struct {
	name string
	sem  chan struct{}
	wg   sync.WaitGroup
}

// NewWorkerPool 创建任务池
func NewWorkerPool(name string, maxConcurrent int) *WorkerPool {
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	return &WorkerPool{
		name: name,
		sem:  make(chan struct{}, maxConcurrent),
	}
}

// Size 最大并发数
func (p *WorkerPool) Size() int {
	return cap(p.sem)
}

// Busy 正在执行的任务数
func (p *WorkerPool) Busy() int {
	return len(p.sem)
}

// TryGo 有空闲槽位时在后台执行fn
func (p *WorkerPool) TryGo(ctx context.Context, id string, fn func(ctx context.Context)) bool {
	select {
	case p.sem <- struct{}{}:
	default:
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.execute(ctx, id, fn)
	}()
	return true
}

// Go 在后台等待槽位并执行fn，ctx先取消时放弃执行
func (p *WorkerPool) Go(ctx context.Context, id string, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			logger.Warn("worker pool task canceled before start",
				zap.String("pool", p.name), zap.String("id", id), zap.Error(ctx.Err()))
			return
		}
		p.execute(ctx, id, fn)
	}()
}

// execute 执行任务，panic不会影响其它任务
func (p *WorkerPool) execute(ctx context.Context, id string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker pool task panic",
				zap.String("pool", p.name), zap.String("id", id), zap.Any("panic", r))
		}
	}()
	fn(ctx)
}

// Wait 等待所有已投递的任务结束（优雅关闭时使用）
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Run 在任务池中同步执行fn并返回结果
// 等待槽位或等待结果期间ctx取消时返回ctx.Err()，已经开始的计算会在后台结束
func Run[T any](ctx context.Context, p *WorkerPool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s worker panic: %v", p.name, r)}
			}
		}()

		value, err := fn(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
