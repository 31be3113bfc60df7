// Package scheduler refreshes every cached interaction row on a weekly
// schedule and monitors how long ago the last successful refresh ran.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/interactions-api/interactions"
	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/giygas/interactions-api/metrics"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

// ErrRefreshInProgress is returned when a refresh starts while another one runs
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Compile-time checks to ensure Scheduler implements the scheduling interfaces
var (
	_ interfaces.Scheduler     = (*Scheduler)(nil)
	_ interfaces.Refresher     = (*Scheduler)(nil)
	_ interfaces.RefreshStatus = (*Scheduler)(nil)
)

// Options configures the weekly refresh
type Options struct {
	Weekday    time.Weekday
	At         string // HH:MM
	StaleAfter time.Duration
	// RunTimeout bounds a scheduled run; on-demand runs use the caller context
	RunTimeout time.Duration
}

// Scheduler owns the weekly refresh job and the refresh state
type Scheduler struct {
	checker   *interactions.Checker
	scheduler *gocron.Scheduler
	opts      Options

	job        *gocron.Job
	refreshing atomic.Bool

	mu          sync.RWMutex
	lastReport  entities.RefreshReport
	hasReport   bool
	lastSuccess time.Time
	startedAt   time.Time

	stopMonitor chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewScheduler creates a scheduler refreshing the rows of checker's cache
func NewScheduler(checker *interactions.Checker, opts Options) *Scheduler {
	if opts.At == "" {
		opts.At = "03:00"
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 8 * 24 * time.Hour
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 6 * time.Hour
	}
	return &Scheduler{
		checker:     checker,
		scheduler:   gocron.NewScheduler(time.Local),
		opts:        opts,
		stopMonitor: make(chan struct{}),
		now:         time.Now,
	}
}

// Start schedules the weekly refresh and the staleness monitor
func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	job, err := s.scheduler.Every(1).Weekday(s.opts.Weekday).At(s.opts.At).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
		defer cancel()
		if _, err := s.RefreshAll(ctx); err != nil {
			logging.Error("Scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule refresh", "error", err)
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	s.job = job

	s.scheduler.StartAsync()
	logging.Info("Weekly refresh scheduled", "weekday", s.opts.Weekday.String(), "at", s.opts.At, "next_run", job.NextRun())

	s.startHealthMonitoring()
	return nil
}

// Stop stops the scheduler and the monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.stopMonitor) })
}

// RefreshAll recomputes every cached row, one key at a time. A key that
// fails keeps its previous row and is reported; it never aborts the run.
func (s *Scheduler) RefreshAll(ctx context.Context) (entities.RefreshReport, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		logging.Info("Refresh already in progress, skipping...")
		metrics.RefreshRunsTotal.WithLabelValues("skipped").Inc()
		return entities.RefreshReport{}, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	report := entities.RefreshReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
	}
	start := time.Now()

	cache := s.checker.Cache()
	sets, err := cache.Keys(ctx)
	if err != nil {
		metrics.RefreshRunsTotal.WithLabelValues("failed").Inc()
		return report, err
	}
	report.Total = len(sets)
	logging.Info("Starting interaction refresh", "run_id", report.RunID, "keys", report.Total)

	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			s.record(report, false)
			metrics.RefreshRunsTotal.WithLabelValues("failed").Inc()
			logging.Warn("Refresh interrupted", "run_id", report.RunID, "refreshed", report.Refreshed, "error", err)
			return report, fmt.Errorf("refresh interrupted: %w", err)
		}

		if err := s.refreshKey(ctx, set); err != nil {
			report.Failed++
			report.FailedKeys = append(report.FailedKeys, set.Key())
			metrics.RefreshKeysTotal.WithLabelValues("failed").Inc()
			logging.Warn("Failed to refresh interaction row", "run_id", report.RunID, "key", set.Key(), "error", err)
			continue
		}
		report.Refreshed++
		metrics.RefreshKeysTotal.WithLabelValues("refreshed").Inc()
	}

	report.Duration = time.Since(start)
	metrics.RefreshDuration.Observe(report.Duration.Seconds())
	metrics.RefreshRunsTotal.WithLabelValues("completed").Inc()
	s.record(report, true)

	logging.Info("Interaction refresh completed",
		"run_id", report.RunID,
		"duration", report.Duration.String(),
		"total", report.Total,
		"refreshed", report.Refreshed,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Scheduler) refreshKey(ctx context.Context, set entities.MedicationSet) error {
	result, err := s.checker.Compute(ctx, set)
	if err != nil {
		return err
	}
	_, err = s.checker.Cache().Overwrite(ctx, set, result)
	return err
}

func (s *Scheduler) record(report entities.RefreshReport, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
	s.hasReport = true
	if completed {
		s.lastSuccess = s.now()
	}
}

// LastReport returns the report of the last run, if any
func (s *Scheduler) LastReport() (entities.RefreshReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport, s.hasReport
}

// IsRefreshing reports whether a run is in progress
func (s *Scheduler) IsRefreshing() bool {
	return s.refreshing.Load()
}

// NextRun returns the next scheduled run, zero before Start
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// isStale reports whether the last successful run, or the start when none
// happened yet, is older than the configured threshold
func (s *Scheduler) isStale(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref := s.lastSuccess
	if ref.IsZero() {
		ref = s.startedAt
	}
	if ref.IsZero() {
		return false
	}
	return now.Sub(ref) > s.opts.StaleAfter
}

// startHealthMonitoring monitors the age of the last refresh
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopMonitor:
				return
			case <-ticker.C:
				if s.isStale(s.now()) {
					logging.Warn("Interaction cache hasn't been refreshed recently", "threshold", s.opts.StaleAfter.String())
				}
			}
		}
	}()
}
