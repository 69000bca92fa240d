// Package workerpool runs short fan-out jobs (upstream fetches, cache fills)
// on a bounded ants pool.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Config sizes the pool.
type Config struct {
	Size           int           `mapstructure:"size"`
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"` // idle worker reclaim interval
	Nonblocking    bool          `mapstructure:"nonblocking"`     // fail fast instead of waiting for a worker
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{Size: 32, ExpiryDuration: time.Minute}
}

// Statistics is a snapshot of task counters.
type Statistics struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"` // panicked or returned an error
}

// Pool wraps ants.Pool with counters and context-aware submission.
type Pool struct {
	pool   *ants.Pool
	logger *logger.Logger

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a pool. A nil config uses DefaultConfig.
func New(cfg *Config, log *logger.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be > 0, got %d", cfg.Size)
	}

	p := &Pool{logger: log}
	opts := []ants.Option{
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(func(v any) {
			p.failed.Add(1)
			log.Error("worker panic", zap.Any("error", v), zap.Stack("stacktrace"))
		}),
	}
	if cfg.ExpiryDuration > 0 {
		opts = append(opts, ants.WithExpiryDuration(cfg.ExpiryDuration))
	}

	pool, err := ants.NewPool(cfg.Size, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Submit schedules task. It returns ctx.Err() without scheduling when ctx is
// already done, and ErrPoolClosed after Release.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		task()
		p.completed.Add(1)
	})
	switch {
	case errors.Is(err, ants.ErrPoolClosed):
		p.submitted.Add(-1)
		return ErrPoolClosed
	case err != nil:
		p.submitted.Add(-1)
		return err
	}
	return nil
}

func (p *Pool) Running() int { return p.pool.Running() }
func (p *Pool) Free() int    { return p.pool.Free() }
func (p *Pool) Cap() int     { return p.pool.Cap() }

// Stats returns the current counters.
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Release waits up to timeout for running tasks, then closes the pool.
func (p *Pool) Release(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool release timed out", zap.Error(err))
	}
}

// Group fans a set of jobs out over the pool and collects their errors.
type Group struct {
	pool *Pool
	ctx  context.Context

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewGroup returns a Group whose jobs receive ctx.
func (p *Pool) NewGroup(ctx context.Context) *Group {
	return &Group{pool: p, ctx: ctx}
}

func (g *Group) record(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}

// Go schedules fn. Scheduling failures are reported by Wait like job errors.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	err := g.pool.Submit(g.ctx, func() {
		defer g.wg.Done()
		if err := fn(g.ctx); err != nil {
			g.pool.failed.Add(1)
			g.record(err)
		}
	})
	if err != nil {
		g.wg.Done()
		g.record(err)
	}
}

// Wait blocks until every job has finished and joins their errors.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
