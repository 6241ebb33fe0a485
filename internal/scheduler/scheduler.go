// Package scheduler runs the refresh cycle on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Ticker runs one refresh cycle.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Scheduler calls a Ticker immediately on start and then every interval.
// Ticks never overlap: a tick that is still running when the next one is due
// causes that one to be skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ticker    Ticker
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Scheduler. timeout bounds a single tick; zero means the
// interval is used.
func New(ticker Ticker, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ticker:    ticker,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. Ticks
// run until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() { s.run(ctx) })
	if err != nil {
		cancel()
		return err
	}

	s.logger.Info("scheduler started", "interval", s.interval)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.ticker.Tick(tickCtx); err != nil {
		s.logger.Error("refresh cycle failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("refresh cycle complete", "duration", time.Since(start))
}

// Stop cancels any running tick and stops future ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}
