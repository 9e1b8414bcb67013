package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"carinsurance/internal/expiration/metrics"
	"carinsurance/internal/expiration/service"
	"carinsurance/internal/platform/config"
	"carinsurance/internal/platform/logger"
	"carinsurance/pkg/requestcontext"
)

// PassRunner runs one reconciliation pass as of now.
type PassRunner interface {
	RunOnePass(ctx context.Context, now time.Time) (service.PassResult, error)
}

// Locker is a cross-replica lease. Acquire reports false when another
// holder has it; Release gives up a lease this process holds.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Monitor drives reconciliation passes on a fixed delay: the next pass is
// scheduled interval after the previous one ends, so passes never overlap.
type Monitor struct {
	runner      PassRunner
	locker      Locker
	interval    time.Duration
	passTimeout time.Duration
	clock       func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithPassTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.passTimeout = d
		}
	}
}

// WithClock overrides the time source passed to each pass.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// WithLocker makes passes conditional on holding a shared lease.
func WithLocker(locker Locker) Option {
	return func(m *Monitor) {
		m.locker = locker
	}
}

func New(runner PassRunner, opts ...Option) (*Monitor, error) {
	if runner == nil {
		return nil, errors.New("pass runner is required")
	}
	m := &Monitor{
		runner:      runner,
		interval:    config.DefaultCheckInterval,
		passTimeout: config.DefaultPassTimeout,
		clock:       time.Now,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run executes a pass immediately and then every interval until ctx is
// cancelled. A failed pass is logged and the schedule continues. An
// in-flight pass is not interrupted by cancellation; it is bounded by the
// pass timeout instead.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "expiration monitor started",
		"interval", m.interval.String(),
		"pass_timeout", m.passTimeout.String(),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "expiration monitor stopped")
			return ctx.Err()
		case <-timer.C:
			// select picks randomly when both are ready.
			if err := ctx.Err(); err != nil {
				m.logger.InfoContext(ctx, "expiration monitor stopped")
				return err
			}
			m.tick(ctx)
			timer.Reset(m.interval)
		}
	}
}

// Start runs the monitor in a background goroutine. Calling Start on a
// running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	go func() {
		defer close(done)
		_ = m.Run(runCtx)
	}()
}

// Stop cancels a started monitor and waits for the in-flight pass, if any,
// to finish or for ctx to expire.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop expiration monitor: %w", ctx.Err())
	}
}

// tick runs a single scheduled pass. It never returns an error: failures
// are logged so the next tick still fires.
func (m *Monitor) tick(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.passTimeout)
	defer cancel()
	ctx = requestcontext.WithPassID(ctx, uuid.NewString())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "expiration pass panicked",
				"pass_id", requestcontext.PassID(ctx),
				"panic", fmt.Sprint(r),
			)
			if m.metrics != nil {
				m.metrics.ObservePass(metrics.OutcomeFailure, start)
			}
		}
	}()

	if m.locker != nil {
		acquired, err := m.locker.Acquire(ctx)
		switch {
		case err != nil:
			// Lease store unavailable: fall back to running. Duplicate
			// records are still prevented by the store.
			m.logger.WarnContext(ctx, "expiration lease unavailable, running pass anyway",
				"pass_id", requestcontext.PassID(ctx),
				"error", err,
			)
		case !acquired:
			m.logger.InfoContext(ctx, "expiration pass skipped, lease held elsewhere",
				"pass_id", requestcontext.PassID(ctx),
			)
			if m.metrics != nil {
				m.metrics.ObservePass(metrics.OutcomeSkipped, start)
			}
			return
		default:
			defer func() {
				if err := m.locker.Release(ctx); err != nil {
					m.logger.WarnContext(ctx, "failed to release expiration lease",
						"pass_id", requestcontext.PassID(ctx),
						"error", err,
					)
				}
			}()
		}
	}

	if _, err := m.runner.RunOnePass(ctx, m.clock()); err != nil {
		m.logger.ErrorContext(ctx, "expiration pass failed",
			"pass_id", requestcontext.PassID(ctx),
			"error", err,
		)
	}
}
