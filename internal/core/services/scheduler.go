package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
)

const maintenanceLockName = "maintenance"

// Scheduler runs periodic credential maintenance: it sweeps expired
// authorization states and refreshes credentials that are about to expire.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance runs each cycle.
type Scheduler struct {
	store       driven.CredentialStore
	ledger      driven.StateLedger
	credentials driving.CredentialService
	lock        driven.DistributedLock
	metrics     driven.CredentialMetrics
	logger      *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	lockTTL        time.Duration
	refreshWindow  time.Duration
	proactiveRenew bool
	now            func() time.Time
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Store        driven.CredentialStore
	StateLedger  driven.StateLedger
	Credentials  driving.CredentialService
	Lock         driven.DistributedLock   // Optional: distributed lock for multi-instance coordination
	Metrics      driven.CredentialMetrics // Optional
	Logger       *slog.Logger
	PollInterval time.Duration // How often to run a cycle (default: 60s)
	LockTTL      time.Duration // TTL for the distributed lock (default: 2x poll interval)

	// RefreshWindow is how far ahead of expiry credentials are renewed.
	// Zero disables proactive refresh and only sweeps states.
	RefreshWindow time.Duration

	Now func() time.Time
}

// SweepResult summarizes one maintenance cycle.
type SweepResult struct {
	StatesRemoved int64 `json:"states_removed"`
	Refreshed     int   `json:"refreshed"`
	Failed        int   `json:"failed"`
	Skipped       bool  `json:"skipped,omitempty"`
}

// NewScheduler creates a new maintenance scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 60 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	return &Scheduler{
		store:          cfg.Store,
		ledger:         cfg.StateLedger,
		credentials:    cfg.Credentials,
		lock:           cfg.Lock,
		metrics:        metrics,
		logger:         logger,
		interval:       interval,
		lockTTL:        lockTTL,
		refreshWindow:  cfg.RefreshWindow,
		proactiveRenew: cfg.RefreshWindow > 0 && cfg.Credentials != nil,
		now:            now,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("maintenance scheduler starting",
		"poll_interval", s.interval,
		"refresh_window", s.refreshWindow,
	)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single maintenance cycle. If a distributed lock is
// configured and held elsewhere, the cycle is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) SweepResult {
	var result SweepResult

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, maintenanceLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire maintenance lock", "error", err)
			result.Skipped = true
			return result
		}
		if !acquired {
			s.logger.Debug("maintenance lock held by another instance, skipping cycle")
			result.Skipped = true
			return result
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), maintenanceLockName); err != nil {
				s.logger.Warn("failed to release maintenance lock", "error", err)
			}
		}()
	}

	removed, err := s.ledger.Cleanup(ctx)
	if err != nil {
		s.logger.Error("failed to sweep authorization states", "error", err)
	} else {
		result.StatesRemoved = removed
		s.metrics.StatesSwept(removed)
		if removed > 0 {
			s.logger.Info("swept expired authorization states", "count", removed)
		}
	}

	if s.proactiveRenew {
		result.Refreshed, result.Failed = s.renewExpiring(ctx)
	}
	return result
}

// renewExpiring refreshes active credentials expiring within the window.
func (s *Scheduler) renewExpiring(ctx context.Context) (refreshed, failed int) {
	creds, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list credentials", "error", err)
		return 0, 0
	}

	now := s.now()
	for _, c := range creds {
		if !c.IsActive || !c.NeedsRefresh(now, s.refreshWindow) || c.RefreshToken() == "" {
			continue
		}
		if ctx.Err() != nil {
			return refreshed, failed
		}

		if _, err := s.credentials.Refresh(ctx, c.Marketplace, c.ProfileName); err != nil {
			failed++
			level := slog.LevelWarn
			if !domain.IsRetryable(err) {
				level = slog.LevelError
			}
			s.logger.Log(ctx, level, "proactive refresh failed",
				"marketplace", c.Marketplace,
				"profile", c.ProfileName,
				"error", err,
			)
			continue
		}
		refreshed++
	}
	return refreshed, failed
}
