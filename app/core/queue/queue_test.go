package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueueRequiresRunCallback(t *testing.T) {
	q := New(4)
	if _, err := q.Enqueue(Job{}); err == nil {
		t.Fatal("expected error for job without Run")
	}
}

func TestQueueRunsJobs(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 2); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.Stop(time.Second)

	var ran atomic.Int64
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(Job{Task: "t", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	waitFor(t, time.Second, func() bool { return ran.Load() == 3 })
	waitFor(t, time.Second, func() bool { return q.Stats().Completed == 3 })
}

func TestQueueRetriesFailedJob(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.Stop(time.Second)

	var attempts atomic.Int64
	_, err := q.Enqueue(Job{
		Task:       "flaky",
		MaxRetries: 2,
		Run: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return q.Stats().Completed == 1 })
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
	if q.Stats().Retried != 2 {
		t.Fatalf("expected 2 retries, got %d", q.Stats().Retried)
	}
}

func TestQueueExhaustsRetriesAndCountsFailure(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.Stop(time.Second)

	var attempts atomic.Int64
	_, _ = q.Enqueue(Job{
		Task:       "doomed",
		MaxRetries: 1,
		Run: func(context.Context) error {
			attempts.Add(1)
			return errors.New("permanent")
		},
	})

	waitFor(t, time.Second, func() bool { return q.Stats().Failed == 1 })
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestQueueRecoversPanickingJob(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.Stop(time.Second)

	_, _ = q.Enqueue(Job{Task: "boom", Run: func(context.Context) error {
		panic("unexpected pipeline state")
	}})

	waitFor(t, time.Second, func() bool { return q.Stats().Failed == 1 })

	// The worker survived and keeps serving.
	var ran atomic.Int64
	_, _ = q.Enqueue(Job{Task: "after", Run: func(context.Context) error {
		ran.Add(1)
		return nil
	}})
	waitFor(t, time.Second, func() bool { return ran.Load() == 1 })
}

func TestStartTwiceFails(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.Stop(time.Second)

	if err := q.Start(ctx, 1); !errors.Is(err, ErrQueueStarted) {
		t.Fatalf("expected ErrQueueStarted, got %v", err)
	}
}

func TestStopDrainsOutstandingJobs(t *testing.T) {
	q := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		_, _ = q.Enqueue(Job{Task: "drain", Run: func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
			return nil
		}})
	}

	if err := q.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if ran.Load() != 5 {
		t.Fatalf("expected all jobs drained, got %d", ran.Load())
	}
}

func TestQueueRestartsAfterStop(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := q.Stop(time.Second); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := q.Start(ctx, 1); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer q.Stop(time.Second)

	var ran atomic.Int64
	_, _ = q.Enqueue(Job{Task: "late", Run: func(context.Context) error {
		ran.Add(1)
		return nil
	}})
	waitFor(t, time.Second, func() bool { return ran.Load() == 1 })
}
