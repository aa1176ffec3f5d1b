package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	applogger "FinDash/pkg/logger"
)

// ErrSchedulerClosed is returned by Go after Shutdown started.
var ErrSchedulerClosed = errors.New("scheduler: closed")

// Ticker is driven periodically by the scheduler.
type Ticker interface {
	Tick(ctx context.Context)
}

// TaskRunner spawns tracked detached tasks.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context)) error
}

// SchedulerOption configures Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerClock sets the clock driving the ticker.
func WithSchedulerClock(c clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// Scheduler fires Tick on a fixed period and owns every fire-and-forget task,
// so shutdown can drain them instead of abandoning them.
// Tick is called from the Run goroutine only, so ticks never overlap.
type Scheduler struct {
	target   Ticker
	interval time.Duration
	clock    clockwork.Clock
	logger   *applogger.Logger

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	pending atomic.Int64

	taskCtx     context.Context
	cancelTasks context.CancelFunc
	stopOnce    sync.Once
}

// NewScheduler creates a scheduler driving target every 30s by default.
func NewScheduler(target Ticker, logger *applogger.Logger, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		target:      target,
		interval:    30 * time.Second,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		taskCtx:     ctx,
		cancelTasks: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", applogger.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.Chan():
			s.safeTick(ctx)
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panic", applogger.Any("panic", r))
		}
	}()
	s.target.Tick(ctx)
}

// Go runs fn in its own goroutine with a context that outlives the caller's request.
func (s *Scheduler) Go(name string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.wg.Add(1)
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.pending.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("task panic",
					applogger.String("task", name),
					applogger.Any("panic", r),
				)
			}
		}()
		fn(s.taskCtx)
	}()
	return nil
}

// Pending returns the number of running detached tasks.
func (s *Scheduler) Pending() int {
	return int(s.pending.Load())
}

// Shutdown refuses new tasks and waits for running ones. When ctx expires first,
// the remaining tasks are cancelled and the timeout is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		stopErr = s.waitForWg(ctx)
		s.cancelTasks()
	})
	return stopErr
}

func (s *Scheduler) waitForWg(ctx context.Context) error {
	doneChan := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(doneChan)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for %d tasks: %w", s.Pending(), ctx.Err())
	case <-doneChan:
		return nil
	}
}
