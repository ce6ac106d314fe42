package sched

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskRunsRepeatedly(t *testing.T) {
	s := New(rand.New(rand.NewSource(1)))
	var runs atomic.Int32
	s.Every("tick", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	s.Wait()
}

func TestCancelStopsTasks(t *testing.T) {
	s := New(rand.New(rand.NewSource(1)))
	s.Every("tick", time.Millisecond, func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestPanicAndErrorDoNotKillLoop(t *testing.T) {
	s := New(rand.New(rand.NewSource(1)))
	var runs atomic.Int32
	s.Every("flaky", 2*time.Millisecond, func(ctx context.Context) error {
		n := runs.Add(1)
		if n == 1 {
			panic("first run blows up")
		}
		return errors.New("still unhappy")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("loop died after %d runs", runs.Load())
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestJitteredDelayStaysInRange(t *testing.T) {
	s := New(rand.New(rand.NewSource(42)))
	task := task{name: "jitter", min: 100 * time.Millisecond, max: 200 * time.Millisecond}
	for i := 0; i < 50; i++ {
		d := s.nextDelay(task)
		if d < task.min || d >= task.max {
			t.Fatalf("delay %v outside [%v, %v)", d, task.min, task.max)
		}
	}
}

func TestRunOnceReportsFailure(t *testing.T) {
	s := New(rand.New(rand.NewSource(1)))
	ctx := context.Background()

	if ok := s.runOnce(ctx, task{name: "ok", fn: func(ctx context.Context) error { return nil }}); !ok {
		t.Error("successful run reported as failure")
	}
	if ok := s.runOnce(ctx, task{name: "err", fn: func(ctx context.Context) error { return errors.New("boom") }}); ok {
		t.Error("failed run reported as success")
	}
	if ok := s.runOnce(ctx, task{name: "panic", fn: func(ctx context.Context) error { panic("boom") }}); ok {
		t.Error("panicking run reported as success")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if ok := s.runOnce(cancelled, task{name: "cancelled", fn: func(ctx context.Context) error { return ctx.Err() }}); !ok {
		t.Error("cancellation treated as failure")
	}
}

func TestRegistrationAfterStartIgnored(t *testing.T) {
	s := New(rand.New(rand.NewSource(1)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	var runs atomic.Int32
	s.Every("late", time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != 0 {
		t.Errorf("late task ran %d times, want 0", runs.Load())
	}
}
