// Package scheduler hosts the periodic jobs: relationship scans, retention
// pruning, and signal sweeps. Each job has a single-flight guard so a slow
// run never overlaps its own next tick, and every run outcome is logged to
// the scheduler_runs table.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ninjaos/autopilot/internal/store"
)

// tickInterval is the scan granularity; job intervals are multiples of it in
// practice (hourly and daily jobs).
const tickInterval = 30 * time.Second

// Run statuses recorded per job.
const (
	RunOK             = "ok"
	RunFailed         = "failed"
	RunSkippedOverlap = "skipped_overlap"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context, now time.Time) error

// Job is a registered periodic task with its own overlap guard.
type Job struct {
	Name  string
	Every time.Duration
	fn    JobFunc
	guard *flightGuard
	next  time.Time
}

// Scheduler drives registered jobs on a shared tick loop. A process-level
// file lock keeps two daemon instances from double-emitting signals.
type Scheduler struct {
	store *store.Store
	delay time.Duration
	lock  *FileLock
	mu    sync.Mutex
	jobs  []*Job
}

// New creates a scheduler. lockPath may be empty to skip cross-process
// locking (tests).
func New(st *store.Store, startupDelay time.Duration, lockPath string) *Scheduler {
	s := &Scheduler{store: st, delay: startupDelay}
	if lockPath != "" {
		s.lock = NewFileLock(lockPath)
	}
	return s
}

// Register adds a job. The first run happens on the first tick after the
// startup delay; subsequent runs follow the interval.
func (s *Scheduler) Register(name string, every time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &Job{
		Name:  name,
		Every: every,
		fn:    fn,
		guard: newFlightGuard(),
	})
	slog.Info("Scheduler job registered", "name", name, "every", every)
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	slog.Info("Scheduler started", "jobs", len(s.jobs))

	s.tick(ctx, time.Now())
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

// tick dispatches every due job. Skipped entirely when another process holds
// the scheduler lock.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if s.lock != nil {
		acquired, err := s.lock.TryLock()
		if err != nil {
			slog.Warn("Scheduler lock error", "error", err)
			return
		}
		if !acquired {
			slog.Debug("Scheduler tick skipped: lock held by another process")
			return
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	s.mu.Lock()
	due := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if now.Before(job.next) {
			continue
		}
		job.next = now.Add(job.Every)
		due = append(due, job)
	}
	s.mu.Unlock()

	for _, job := range due {
		s.dispatch(ctx, job, now)
	}
}

// RunJobNow executes one registered job synchronously, outside the tick
// loop. Used by the CLI.
func (s *Scheduler) RunJobNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *Job
	for _, job := range s.jobs {
		if job.Name == name {
			target = job
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return nil
	}
	return s.runGuarded(ctx, target, time.Now())
}

func (s *Scheduler) dispatch(ctx context.Context, job *Job, now time.Time) {
	go func() {
		_ = s.runGuarded(ctx, job, now)
	}()
}

func (s *Scheduler) runGuarded(ctx context.Context, job *Job, now time.Time) error {
	if !job.guard.TryAcquire() {
		slog.Warn("Scheduler job still running, skipping tick", "job", job.Name)
		s.logRun(job.Name, RunSkippedOverlap, now)
		return nil
	}
	defer job.guard.Release()

	if err := job.fn(ctx, now); err != nil {
		slog.Error("Scheduler job failed", "job", job.Name, "error", err)
		s.logRun(job.Name, RunFailed, now)
		return err
	}
	s.logRun(job.Name, RunOK, now)
	return nil
}

// logRun persists the run outcome (best-effort).
func (s *Scheduler) logRun(name, status string, tick time.Time) {
	if s.store == nil {
		return
	}
	if err := s.store.UpsertSchedulerRun(name, status, tick); err != nil {
		slog.Warn("Scheduler run log failed", "job", name, "error", err)
	}
}
