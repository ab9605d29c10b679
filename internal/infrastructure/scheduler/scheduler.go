// Package scheduler runs the background jobs of the server on gocron: the
// resync of a degraded store and the end-of-day analytics snapshot.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/domain/report"
	"github.com/cas-inventory/backend/internal/infrastructure/persistence"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// SnapshotRecorder writes the daily analytics snapshot
type SnapshotRecorder interface {
	RecordDailySnapshot(ctx context.Context) (*report.DailySnapshot, error)
}

// Config holds scheduler settings
type Config struct {
	ResyncInterval time.Duration // 0 disables the resync job
	SnapshotAt     string        // HH:MM in the shop's time zone; empty disables the snapshot job
	JobTimeout     time.Duration
}

// DefaultConfig returns the default job settings
func DefaultConfig() Config {
	return Config{
		ResyncInterval: time.Minute,
		SnapshotAt:     "23:55",
		JobTimeout:     30 * time.Second,
	}
}

// Scheduler owns a gocron scheduler and the jobs registered on it
type Scheduler struct {
	config Config
	cron   *gocron.Scheduler
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// New creates a scheduler whose daily jobs run in loc
func New(cfg Config, loc *time.Location, logger *zap.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	return &Scheduler{
		config: cfg,
		cron:   cron,
		logger: logger.Named("scheduler"),
	}
}

// AddResyncJob retries the remote store while syncer is degraded
func (s *Scheduler) AddResyncJob(syncer persistence.Syncer) error {
	if s.config.ResyncInterval <= 0 {
		s.logger.Info("Store resync job disabled")
		return nil
	}
	if err := s.checkStopped(); err != nil {
		return err
	}

	job := &ResyncJob{syncer: syncer, timeout: s.config.JobTimeout, logger: s.logger}
	if _, err := s.cron.Every(s.config.ResyncInterval).Do(job.Run); err != nil {
		return fmt.Errorf("%w: resync job: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AddDailySnapshotJob records the analytics snapshot once a day
func (s *Scheduler) AddDailySnapshotJob(recorder SnapshotRecorder) error {
	if s.config.SnapshotAt == "" {
		return nil
	}
	if err := s.checkStopped(); err != nil {
		return err
	}

	job := &SnapshotJob{recorder: recorder, timeout: s.config.JobTimeout, logger: s.logger}
	if _, err := s.cron.Every(1).Day().At(s.config.SnapshotAt).Do(job.Run); err != nil {
		return fmt.Errorf("%w: snapshot job at %q: %w", ErrInvalidConfig, s.config.SnapshotAt, err)
	}
	return nil
}

// Start runs the registered jobs in the background
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.cron.StartAsync()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Jobs())))
}

// Stop stops the scheduler; running jobs are left to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

// JobCount returns the number of registered jobs
func (s *Scheduler) JobCount() int {
	return len(s.cron.Jobs())
}

func (s *Scheduler) checkStopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	return nil
}
