// Package sched runs named background tasks on fixed or jittered random
// intervals, with shared cancellation and panic containment per run.
package sched

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// TaskFunc is one periodic unit of work. Errors are logged, not fatal.
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	min  time.Duration
	max  time.Duration
	fn   TaskFunc
}

// Scheduler owns a set of periodic tasks and their goroutines.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []task
	wg      sync.WaitGroup
	rng     *rand.Rand
	started bool
}

// retryDelay is the shortened delay after a failed run, so a transient
// upstream error is retried well before the next jittered interval.
const retryDelay = time.Minute

// New returns an empty scheduler. A nil rng falls back to a time seed.
func New(rng *rand.Rand) *Scheduler {
	if rng == nil {
		//nolint:gosec // G404: scheduling jitter, not security sensitive
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{rng: rng}
}

// Every registers a task that runs on a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc) {
	s.EveryBetween(name, interval, interval, fn)
}

// EveryBetween registers a task whose next delay is drawn uniformly from
// [min, max] after each run. Registration after Start is ignored.
func (s *Scheduler) EveryBetween(name string, min, max time.Duration, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		slog.Warn("task registered after scheduler start; ignored", slog.String("task", name))
		return
	}
	if max < min {
		max = min
	}
	s.tasks = append(s.tasks, task{name: name, min: min, max: max, fn: fn})
}

// Start launches one goroutine per task. Tasks stop when ctx is cancelled;
// Wait blocks until all of them have returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	tasks := s.tasks
	s.mu.Unlock()

	for _, t := range tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	slog.Info("scheduler started", slog.Int("tasks", len(tasks)))
}

// Wait blocks until every task goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	defer s.wg.Done()
	timer := time.NewTimer(s.nextDelay(t))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		ok := s.runOnce(ctx, t)
		delay := s.nextDelay(t)
		if !ok && delay > retryDelay {
			delay = retryDelay
		}
		timer.Reset(delay)
	}
}

func (s *Scheduler) nextDelay(t task) time.Duration {
	if t.max <= t.min {
		return t.min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.min + time.Duration(s.rng.Int63n(int64(t.max-t.min)))
}

func (s *Scheduler) runOnce(ctx context.Context, t task) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("task panicked", slog.String("task", t.name), slog.Any("panic", rec))
			ok = false
		}
	}()
	if err := t.fn(ctx); err != nil {
		if ctx.Err() != nil {
			return true
		}
		slog.Warn("task failed", slog.String("task", t.name), slog.Any("error", err))
		return false
	}
	return true
}
