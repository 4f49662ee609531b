package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a refresh function on a cron schedule.
type Scheduler struct {
	schedule string
	refresh  func(context.Context) (*ReloadStats, error)
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	stop    chan struct{} // closed by Stop; nil when not running
	stopped chan struct{} // closed when the ctx watcher of the current run exits
}

// NewScheduler creates a scheduler. schedule uses standard five-field cron
// syntax or descriptors such as "@every 30s" and "@hourly".
func NewScheduler(schedule string, refresh func(context.Context) (*ReloadStats, error), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		refresh:  refresh,
		cron:     cron.New(),
		logger:   logger.With("component", "rule.registry.scheduler"),
	}
}

// Start begins scheduled refreshes. An empty schedule does nothing.
// The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("refresh schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	id, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.entry = id
	stop, stopped := make(chan struct{}), make(chan struct{})
	s.stop, s.stopped = stop, stopped
	s.logger.Info("refresh scheduler started", "schedule", s.schedule)

	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			s.stopRun(stop)
		case <-stop:
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Debug("starting scheduled refresh")
	if _, err := s.refresh(ctx); err != nil {
		s.logger.Error("scheduled refresh failed", "error", err)
	}
}

// Stop stops the scheduler and waits for a running refresh to finish.
// The scheduler can be started again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopRun stops the run that owns stop, if it is still the current one.
func (s *Scheduler) stopRun(stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == stop {
		s.stopLocked()
	}
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.cron.Remove(s.entry)
	done := s.cron.Stop()
	<-done.Done()
	close(s.stop)
	s.running = false
	s.stop = nil
	s.logger.Info("refresh scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled refresh, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
