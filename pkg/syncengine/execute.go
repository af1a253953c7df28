package syncengine

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/filesystem"
	"github.com/driftmirror/driftmirror/pkg/parallelism"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// FailedAction records one action that did not complete successfully during
// Execute, per spec §5's "run status ... emits a FailedAction list".
type FailedAction struct {
	VirtualPath string
	Kind        ActionKind
	Err         error
}

// ExecuteResult summarizes the outcome of running a Plan's actions.
type ExecuteResult struct {
	Succeeded []PlanAction
	Failed    []FailedAction
}

// orderActions sorts actions per spec §4.5 step 5: directories first, then
// files by ascending depth, deletes last.
func orderActions(actions []PlanAction) []PlanAction {
	ordered := make([]PlanAction, len(actions))
	copy(ordered, actions)
	rank := func(a PlanAction) int {
		switch a.Kind {
		case ActionDelete:
			return 2
		case ActionCreateDirectory:
			return 0
		default:
			return 1
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := rank(ordered[i]), rank(ordered[j])
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Depth < ordered[j].Depth
	})
	return ordered
}

// conflictsWithAny reports whether action conflicts (per spec §4.5's
// destination-path or lexicographic parent/child rule) with any action
// already in members.
func conflictsWithAny(action PlanAction, members []PlanAction) bool {
	for _, other := range members {
		if action.DestinationPath == other.DestinationPath {
			return true
		}
		if isPathAncestor(action.DestinationPath, other.DestinationPath) ||
			isPathAncestor(other.DestinationPath, action.DestinationPath) {
			return true
		}
	}
	return false
}

func isPathAncestor(maybeParent, maybeChild string) bool {
	if maybeParent == "" || maybeChild == "" {
		return false
	}
	return strings.HasPrefix(maybeChild, maybeParent+string(filepath.Separator))
}

// Executor runs a resolved Plan's actions under the worker pool, acquiring
// per-file Store locks and retrying transient errors, per spec §4.5 step 5.
type Executor struct {
	entries *store.EntryStore
	pool    *parallelism.Pool
}

// NewExecutor creates an Executor backed by the given EntryStore and worker
// pool size (0 uses parallelism.WorkerCount()).
func NewExecutor(entries *store.EntryStore, poolSize int) *Executor {
	return &Executor{entries: entries, pool: parallelism.NewPool(poolSize)}
}

// Execute runs every action in plan, grouped into conflict-free waves,
// acquiring a Store lock per file for the duration of its action. It
// returns an ExecuteResult distinguishing succeeded from failed actions;
// per spec §4.5/§7, a fatal ENOSPC aborts the entire run (returned as an
// error), while EPERM and checksum mismatches are recorded as per-file
// failures and the run continues.
func (e *Executor) Execute(ctx context.Context, syncPairID string, direction Direction, actions []PlanAction) (*ExecuteResult, error) {
	ordered := orderActions(actions)
	result := &ExecuteResult{}

	waveGroups := packWaves(ordered)
	for _, group := range waveGroups {
		wave := parallelism.NewWave()
		for _, action := range group {
			action := action
			wave.Add(func(ctx context.Context) error {
				err := e.executeOne(ctx, syncPairID, direction, action)
				if err != nil {
					if dmerrors.CodeOf(err) == dmerrors.CodeInsufficientSpace {
						return err // fatal: aborts the run
					}
					result.Failed = append(result.Failed, FailedAction{
						VirtualPath: action.VirtualPath, Kind: action.Kind, Err: err,
					})
					return nil
				}
				result.Succeeded = append(result.Succeeded, action)
				return nil
			})
		}
		if err := e.pool.Run(ctx, wave); err != nil {
			return result, err
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
	}

	return result, nil
}

// packWaves groups ordered actions into non-conflicting batches.
func packWaves(ordered []PlanAction) [][]PlanAction {
	var groups [][]PlanAction
	for _, action := range ordered {
		placed := false
		for i := range groups {
			if !conflictsWithAny(action, groups[i]) {
				groups[i] = append(groups[i], action)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []PlanAction{action})
		}
	}
	return groups
}

// executeOne performs a single action's filesystem operation under a Store
// lock, with one retry (after 50 ms) on transient errors. The retry count is
// fixed; the configuration's advanced.retryCount is not read.
func (e *Executor) executeOne(ctx context.Context, syncPairID string, direction Direction, action PlanAction) error {
	lockDirection := store.LockDirectionLocalToExternal
	if direction == DirectionExternalToLocal {
		lockDirection = store.LockDirectionExternalToLocal
	}

	if err := e.entries.Lock(syncPairID, action.VirtualPath, lockDirection, time.Now()); err != nil {
		return err
	}
	defer e.entries.Unlock(syncPairID, action.VirtualPath)

	backoff := retry.WithMaxRetries(1, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		opErr := e.performOperation(ctx, action)
		if isTransient(opErr) {
			return retry.RetryableError(opErr)
		}
		return opErr
	})
	if err != nil {
		return classifyActionError(err)
	}

	return e.markComplete(syncPairID, action)
}

// performOperation carries out the actual filesystem side effect for one
// action kind.
func (e *Executor) performOperation(ctx context.Context, action PlanAction) error {
	switch action.Kind {
	case ActionCreateDirectory:
		return os.MkdirAll(action.DestinationPath, 0755)
	case ActionDelete:
		err := os.RemoveAll(action.DestinationPath)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	case ActionCopy, ActionUpdate:
		info, err := os.Stat(action.SourcePath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(action.DestinationPath), 0755); err != nil {
			return err
		}
		_, err = filesystem.CopyFileAtomic(ctx, action.SourcePath, action.DestinationPath, info.Mode().Perm())
		if err != nil {
			return err
		}
		return os.Chtimes(action.DestinationPath, info.ModTime(), info.ModTime())
	case ActionCreateSymlink:
		target, err := os.Readlink(action.SourcePath)
		if err != nil {
			return err
		}
		return os.Symlink(target, action.DestinationPath)
	case ActionSkip, ActionResolveConflict:
		return nil
	default:
		return errors.Errorf("unrecognized action kind %q", action.Kind)
	}
}

// markComplete marks the Store entry clean and updates its location after a
// successful action, per spec §4.5 step 5.
func (e *Executor) markComplete(syncPairID string, action PlanAction) error {
	if action.Kind == ActionDelete {
		return e.entries.DeleteEntry(syncPairID, action.VirtualPath)
	}
	if err := e.entries.MarkClean(syncPairID, action.VirtualPath); err != nil {
		return err
	}
	return e.entries.UpdateLocation(syncPairID, action.VirtualPath, store.LocationBoth, action.SourcePath, action.DestinationPath)
}

// isTransient reports whether err matches spec §4.5 step 5's list of
// transient errors eligible for a single retry: EAGAIN, EBUSY, or a short
// read/write (surfaced here as io.ErrShortWrite/io.ErrUnexpectedEOF via the
// underlying os error chain).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, io.ErrShortWrite) || errors.Is(err, io.ErrUnexpectedEOF)
}

// classifyActionError maps a raw filesystem error to the structured
// dmerrors taxonomy, distinguishing the fatal ENOSPC case from the
// record-and-continue EPERM case per spec §4.5 step 5 / §7.
func classifyActionError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return dmerrors.Wrap(err, dmerrors.CodeInsufficientSpace, "insufficient space for sync action")
	}
	if errors.Is(err, syscall.EPERM) || errors.Is(err, fs.ErrPermission) {
		return dmerrors.Wrap(err, dmerrors.CodePermissionDenied, "permission denied during sync action")
	}
	return dmerrors.Wrap(err, dmerrors.CodeInternal, "sync action failed")
}

// aggregateFailures combines a run's per-file failures into a single error
// using multierr, for SyncHistory.errorMessage (spec §4.5's "SyncHistory
// ... sealed at terminal state with aggregate counts").
func aggregateFailures(failed []FailedAction) error {
	var combined error
	for _, f := range failed {
		combined = multierr.Append(combined, errors.Wrapf(f.Err, "%s %s", f.Kind, f.VirtualPath))
	}
	return combined
}
