// Package scheduler drives periodic integration syncs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SyncRunner starts every sync that is due at now and reports how many
// were launched
type SyncRunner interface {
	RunDueSyncs(ctx context.Context, now time.Time) int
}

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// CheckInterval is how often due integrations are looked up
	CheckInterval time.Duration
}

// DefaultSyncSchedulerConfig returns default sync scheduler configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{CheckInterval: 30 * time.Second}
}

// Validate checks the configuration
func (c SyncSchedulerConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// SyncSchedulerStats is a snapshot of scheduler activity
type SyncSchedulerStats struct {
	Running      bool      `json:"running"`
	Ticks        int64     `json:"ticks"`
	SyncsStarted int64     `json:"syncs_started"`
	LastTickAt   time.Time `json:"last_tick_at,omitempty"`
}

// SyncScheduler ticks at a fixed interval and asks the runner to start due
// syncs. It never runs a sync itself.
type SyncScheduler struct {
	config SyncSchedulerConfig
	runner SyncRunner
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stats     SyncSchedulerStats
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, runner SyncRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: runner is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config: config,
		runner: runner,
		logger: logger.Named("sync_scheduler"),
		now:    time.Now,
	}, nil
}

// Start launches the tick loop. Starting twice is a no-op.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("check_interval", s.config.CheckInterval),
	)
	return nil
}

// Stop cancels the loop and waits for the current tick to return
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Stats returns a snapshot of scheduler activity
func (s *SyncScheduler) Stats() SyncSchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Running = s.isRunning
	return stats
}

// Tick runs one scheduling pass immediately
func (s *SyncScheduler) Tick(ctx context.Context) int {
	now := s.now()
	started := s.runner.RunDueSyncs(ctx, now)

	s.mu.Lock()
	s.stats.Ticks++
	s.stats.SyncsStarted += int64(started)
	s.stats.LastTickAt = now
	s.mu.Unlock()

	if started > 0 {
		s.logger.Info("Scheduled syncs started", zap.Int("count", started))
	}
	return started
}

func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
