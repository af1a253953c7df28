package parallelism

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolRunExecutesAllActions(t *testing.T) {
	pool := NewPool(4)
	wave := NewWave()

	var count int32
	for i := 0; i < 10; i++ {
		wave.Add(func(ctx context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
	}

	if err := pool.Run(context.Background(), wave); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10 actions to run, got %d", count)
	}
}

func TestPoolRunReturnsFirstError(t *testing.T) {
	pool := NewPool(2)
	wave := NewWave()

	sentinel := errors.New("boom")
	wave.Add(func(ctx context.Context) error { return sentinel })
	wave.Add(func(ctx context.Context) error { return nil })

	if err := pool.Run(context.Background(), wave); err != sentinel {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestPoolRunEmptyWave(t *testing.T) {
	pool := NewPool(2)
	if err := pool.Run(context.Background(), NewWave()); err != nil {
		t.Errorf("expected nil error for empty wave, got %v", err)
	}
}

func TestPoolRunAllStopsAfterFailingWave(t *testing.T) {
	pool := NewPool(2)

	var secondWaveRan bool
	failing := NewWave()
	failing.Add(func(ctx context.Context) error { return errors.New("fail") })

	second := NewWave()
	second.Add(func(ctx context.Context) error {
		secondWaveRan = true
		return nil
	})

	err := pool.RunAll(context.Background(), []*Wave{failing, second})
	if err == nil {
		t.Fatal("expected error from failing wave")
	}
	if secondWaveRan {
		t.Error("expected second wave not to run after first wave failed")
	}
}

func TestWorkerCountBoundedByMax(t *testing.T) {
	if got := WorkerCount(); got < 1 || got > MaxWorkers {
		t.Errorf("WorkerCount() = %d, want between 1 and %d", got, MaxWorkers)
	}
}
