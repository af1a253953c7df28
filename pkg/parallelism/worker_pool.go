// Package parallelism provides the bounded worker pool that SyncEngine uses
// to execute non-conflicting actions concurrently (spec §4.5).
package parallelism

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MaxWorkers is the hard ceiling on concurrent action execution, per spec
// §4.5's "worker pool of size ≤ min(8, N_cpu)".
const MaxWorkers = 8

// WorkerCount returns the worker pool size for the current machine: the
// number of CPUs, capped at MaxWorkers, with a floor of 1.
func WorkerCount() int {
	n := runtime.NumCPU()
	if n > MaxWorkers {
		return MaxWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// Action is a single unit of work submitted to a Wave. It is typically a
// closure over one SyncPlan action (Copy, Update, Delete, ...).
type Action func(ctx context.Context) error

// Wave is a group of actions known not to conflict with one another (they
// share neither a destination path nor a lexicographic parent/child
// relationship, per spec §4.5's wave-grouping rule). A Wave runs its actions
// across a bounded pool and stops launching new ones once the context is
// cancelled or a prior action has failed, matching errgroup's
// first-error-wins semantics.
type Wave struct {
	actions []Action
}

// NewWave creates an empty wave.
func NewWave() *Wave {
	return &Wave{}
}

// Add appends an action to the wave.
func (w *Wave) Add(action Action) {
	w.actions = append(w.actions, action)
}

// Len reports the number of actions queued in the wave.
func (w *Wave) Len() int {
	return len(w.actions)
}

// Pool executes waves of actions with a bounded number of concurrent
// Goroutines. Unlike mutagen's SIMDWorkerArray (which always fans a single
// workload out across every worker), Pool only ever runs as many
// Goroutines as there are actions in the current wave, up to its configured
// limit, since a wave may contain fewer actions than there are workers
// available.
type Pool struct {
	size int
}

// NewPool creates a worker pool with the given concurrency limit. If size is
// zero or negative, WorkerCount() is used.
func NewPool(size int) *Pool {
	if size < 1 {
		size = WorkerCount()
	}
	return &Pool{size: size}
}

// Run executes every action in the wave, allowing up to the pool's
// configured number of actions to run concurrently. It returns the first
// non-nil error encountered; once an action fails, the pool stops launching
// further actions in the wave but waits for in-flight actions to finish
// (errgroup.WithContext cancels their shared context so well-behaved
// actions can exit early).
func (p *Pool) Run(ctx context.Context, wave *Wave) error {
	if wave.Len() == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.size)

	for _, action := range wave.actions {
		if groupCtx.Err() != nil {
			break
		}
		action := action
		group.Go(func() error {
			return action(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// RunAll executes a sequence of waves back to back: all actions within a
// wave run concurrently (bounded by the pool size), but one wave completes
// entirely before the next begins, preserving the directories-first,
// ascending-depth, deletes-last execution order that spec §4.5 step 5
// requires between waves while still parallelizing within each wave.
func (p *Pool) RunAll(ctx context.Context, waves []*Wave) error {
	for _, wave := range waves {
		if err := p.Run(ctx, wave); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}
