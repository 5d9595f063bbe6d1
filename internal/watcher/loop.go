package watcher

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/observability"
)

// DefaultInterval is the pause between the end of one cycle and the start of the next.
const DefaultInterval = 120 * time.Second

// Runner executes a single cycle.
type Runner interface {
	Run(ctx context.Context, cc CycleContext) (*CycleResult, error)
}

// Loop runs cycles one at a time with a fixed pause between them.
type Loop struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	count    int64
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	Runner   Runner
	Interval time.Duration
	Logger   *zap.Logger
}

// NewLoop creates a new Loop.
func NewLoop(opts LoopOptions) *Loop {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		runner:   opts.Runner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes cycles until ctx is cancelled. A cycle in progress is never
// interrupted; cancellation takes effect between cycles. Returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("watch loop started", zap.Duration("interval", l.interval))

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("watch loop stopping")
			return err
		}

		_, _ = l.RunOnce(ctx)

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// RunOnce executes the next cycle, converting panics into errors.
// The cycle runs under a context detached from ctx's cancellation.
func (l *Loop) RunOnce(ctx context.Context) (res *CycleResult, err error) {
	l.count++
	cc := CycleContext{Number: l.count, StartedAt: l.now()}
	start := time.Now()

	defer func() {
		status := "ok"
		if r := recover(); r != nil {
			status = "panic"
			err = errors.Errorf("cycle panic: %v", r)
			l.logger.Error("recovered from cycle panic",
				zap.Int64("cycle", cc.Number),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		} else if err != nil {
			status = "error"
			l.logger.Error("cycle failed", zap.Int64("cycle", cc.Number), zap.Error(err))
		}

		observability.RecordCycle(status, time.Since(start).Seconds())
		if status == "ok" {
			observability.RecordCycleSuccess(l.now().Unix())
		}
	}()

	return l.runner.Run(context.WithoutCancel(ctx), cc)
}
