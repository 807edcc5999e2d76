package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recurring/internal/core"
)

// SchedulerConfig holds configuration for the detection scheduler
type SchedulerConfig struct {
	// Interval is how often every account is re-detected (default: 1h)
	Interval time.Duration

	// DaysBack is the lookback window of each run (default: core.DefaultDaysBack)
	DaysBack int
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: time.Hour,
		DaysBack: core.DefaultDaysBack,
	}
}

// BatchRunner runs one detection pass over all accounts.
type BatchRunner interface {
	ProcessAll(ctx context.Context, daysBack int) (BatchResult, error)
}

// DetectionScheduler re-runs detection for every account on a fixed interval.
type DetectionScheduler struct {
	runner BatchRunner
	config SchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewDetectionScheduler(runner BatchRunner, config SchedulerConfig) *DetectionScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.DaysBack <= 0 {
		config.DaysBack = core.DefaultDaysBack
	}
	return &DetectionScheduler{runner: runner, config: config}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *DetectionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("detection scheduler is already running")
	}
	s.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopCh = stop
	s.doneCh = done
	s.mu.Unlock()

	go s.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Detection scheduler started",
		"interval", s.config.Interval,
		"days_back", s.config.DaysBack)
	return nil
}

// Stop signals the loop and waits for the current pass to finish. The scheduler
// counts as stopped as soon as Stop is called; if ctx ends first, a later Stop
// waits for the same pass again.
func (s *DetectionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.running = false
	done := s.doneCh
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		slog.InfoContext(ctx, "Detection scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Detection scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	if s.doneCh == done {
		s.doneCh = nil
	}
	s.mu.Unlock()
	return nil
}

func (s *DetectionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *DetectionScheduler) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runOnce(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *DetectionScheduler) runOnce(ctx context.Context) {
	if _, err := s.runner.ProcessAll(ctx, s.config.DaysBack); err != nil {
		slog.ErrorContext(ctx, "Scheduled detection failed", "error", err)
	}
}
