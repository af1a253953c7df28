package syncengine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/driftmirror/driftmirror/pkg/filter"
	"github.com/driftmirror/driftmirror/pkg/indexer"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/state"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// RunState is the per-run state machine of spec §4.5: "scanning →
// calculating → (checksumming?) → resolving → syncing → verifying →
// completed" or interrupted by "cancelled"/"failed".
type RunState string

const (
	RunStateScanning     RunState = "scanning"
	RunStateCalculating   RunState = "calculating"
	RunStateChecksumming  RunState = "checksumming"
	RunStateResolving     RunState = "resolving"
	RunStateSyncing       RunState = "syncing"
	RunStateVerifying     RunState = "verifying"
	RunStateCompleted     RunState = "completed"
	RunStateCancelled     RunState = "cancelled"
	RunStateFailed        RunState = "failed"
)

// phaseWeights gives each phase's contribution to overall progress, per
// spec §4.5: "scan 15%, calc 5%, checksum 10%, sync 60%, verify 10%".
var phaseWeights = map[RunState]float64{
	RunStateScanning:     0.15,
	RunStateCalculating:  0.05,
	RunStateChecksumming: 0.10,
	RunStateSyncing:      0.60,
	RunStateVerifying:    0.10,
}

// Options configures one Run of the SyncEngine.
type Options struct {
	SyncPairID      string
	Direction       Direction
	LocalDir        string
	ExternalDir     string
	ExternalOnline  bool
	MirrorDelete    bool
	EnableChecksums bool
	ConflictStrategy ConflictStrategy
	Rules           *filter.Rules
}

// Progress is published as a run advances through its phases, per spec §5's
// SyncProgress/IndexProgress channels and the GetSyncProgress RPC.
type Progress struct {
	RunID    string
	State    RunState
	Fraction float64
	Err      error
}

// Engine is the SyncEngine of spec §4.5: it snapshots both sides of a sync
// pair, calculates a Plan, resolves conflicts, executes under per-file
// locks, and verifies the result, serializing runs per sync pair (spec
// §5's "per-sync-pair SyncEngine serializer").
type Engine struct {
	store     *store.Store
	logger    *logging.Logger
	tracker   *state.Tracker
	pairLocks sync.Map // syncPairID -> *sync.Mutex
}

// New creates a SyncEngine backed by the given Store.
func New(s *store.Store, logger *logging.Logger) *Engine {
	return &Engine{store: s, logger: logger.Sublogger("syncengine"), tracker: state.NewTracker()}
}

// Tracker exposes the engine's progress Tracker for RPC long-poll queries
// (GetSyncProgress, spec §6.1).
func (e *Engine) Tracker() *state.Tracker { return e.tracker }

func (e *Engine) pairLock(syncPairID string) *sync.Mutex {
	lock, _ := e.pairLocks.LoadOrStore(syncPairID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Run executes one complete sync run for the given pair, serialized against
// any other run on the same sync pair (spec §5). It returns the run's
// ExecuteResult and an error only for conditions that aborted the entire
// run (context cancellation or a fatal action error); per-file failures are
// recorded on the ExecuteResult instead.
func (e *Engine) Run(ctx context.Context, opts Options, progress chan<- Progress) (*ExecuteResult, error) {
	lock := e.pairLock(opts.SyncPairID)
	lock.Lock()
	defer lock.Unlock()

	runID := uuid.NewString()
	historyID, err := e.store.History.BeginRun(ctx, opts.SyncPairID, "", directionForHistory(opts.Direction))
	if err != nil {
		return nil, err
	}

	emitProgress(progress, runID, RunStateScanning, 0, nil)
	if err := e.store.History.TransitionRun(ctx, historyID, store.RunStatusInProgress); err != nil {
		e.logger.Warnf("unable to transition run %s: %s", historyID, err)
	}

	sourceDir, destDir := opts.LocalDir, opts.ExternalDir
	if opts.Direction == DirectionExternalToLocal {
		sourceDir, destDir = opts.ExternalDir, opts.LocalDir
	}

	sourceSnapshot, destSnapshot, err := e.scan(ctx, opts, sourceDir, destDir)
	if err != nil {
		e.sealFailed(ctx, historyID, err)
		emitProgress(progress, runID, RunStateFailed, 1, err)
		return nil, err
	}
	e.tracker.NotifyOfChange()

	emitProgress(progress, runID, RunStateCalculating, phaseWeights[RunStateScanning], nil)
	actions, conflicts := calculate(sourceSnapshot, destSnapshot, sourceDir, destDir, opts.MirrorDelete)

	fraction := phaseWeights[RunStateScanning] + phaseWeights[RunStateCalculating]
	if opts.EnableChecksums {
		emitProgress(progress, runID, RunStateChecksumming, fraction, nil)
		actions, err = refineWithChecksums(actions)
		if err != nil {
			e.sealFailed(ctx, historyID, err)
			emitProgress(progress, runID, RunStateFailed, 1, err)
			return nil, err
		}
		fraction += phaseWeights[RunStateChecksumming]
	}

	emitProgress(progress, runID, RunStateResolving, fraction, nil)
	conflicts = resolve(conflicts, opts.ConflictStrategy, opts.Direction)
	actions = append(actions, actionsForResolvedConflicts(conflicts, sourceDir, destDir)...)

	emitProgress(progress, runID, RunStateSyncing, fraction, nil)
	executor := NewExecutor(e.store.Entries, 0)
	result, err := executor.Execute(ctx, opts.SyncPairID, opts.Direction, actions)
	if err != nil {
		e.sealFailed(ctx, historyID, err)
		emitProgress(progress, runID, RunStateFailed, 1, err)
		return result, err
	}
	fraction += phaseWeights[RunStateSyncing]

	emitProgress(progress, runID, RunStateVerifying, fraction, nil)
	verifyResults := Verify(result.Succeeded)
	for _, v := range verifyResults {
		if v.Err != nil {
			result.Failed = append(result.Failed, FailedAction{VirtualPath: v.VirtualPath, Err: v.Err})
		}
	}

	status := store.RunStatusCompleted
	if len(result.Succeeded) == 0 && len(result.Failed) > 0 {
		status = store.RunStatusFailed
	}
	errMsg := ""
	if combined := aggregateFailures(result.Failed); combined != nil {
		errMsg = combined.Error()
	}
	var totalBytes int64
	if err := e.store.History.SealRun(ctx, historyID, status, len(result.Succeeded), totalBytes, errMsg); err != nil {
		e.logger.Warnf("unable to seal run %s: %s", historyID, err)
	}

	e.tracker.NotifyOfChange()
	emitProgress(progress, runID, RunStateCompleted, 1, nil)
	return result, nil
}

// scan runs the Indexer-backed dual-tree scan (spec §4.5 step 1).
func (e *Engine) scan(ctx context.Context, opts Options, sourceDir, destDir string) (*indexer.Snapshot, *indexer.Snapshot, error) {
	source, err := indexer.ScanDir(sourceDir, opts.Rules)
	if err != nil {
		return nil, nil, err
	}
	dest := indexer.NewSnapshot()
	if destDir != "" {
		dest, err = indexer.ScanDir(destDir, opts.Rules)
		if err != nil {
			return nil, nil, err
		}
	}
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}
	return source, dest, nil
}

func (e *Engine) sealFailed(ctx context.Context, historyID string, err error) {
	if sealErr := e.store.History.SealRun(ctx, historyID, store.RunStatusFailed, 0, 0, err.Error()); sealErr != nil {
		e.logger.Warnf("unable to seal failed run %s: %s", historyID, sealErr)
	}
}

func emitProgress(progress chan<- Progress, runID string, s RunState, fraction float64, err error) {
	if progress == nil {
		return
	}
	select {
	case progress <- Progress{RunID: runID, State: s, Fraction: fraction, Err: err}:
	default:
	}
}

func directionForHistory(d Direction) store.Direction {
	switch d {
	case DirectionLocalToExternal:
		return store.DirectionLocalToExternal
	case DirectionExternalToLocal:
		return store.DirectionExternalToLocal
	default:
		return store.DirectionLocalToExternal
	}
}

// actionsForResolvedConflicts translates each resolved ConflictInfo into a
// concrete PlanAction, implementing the keepLocal/keepExternal/
// *WinsWithBackup/keepBoth/skip semantics of spec §4.5 step 4.
func actionsForResolvedConflicts(conflicts []ConflictInfo, sourceDir, destDir string) []PlanAction {
	var actions []PlanAction
	for _, c := range conflicts {
		c := c
		switch c.Resolution {
		case ResolutionSkip, "":
			continue
		case ResolutionKeepLocal, ResolutionKeepExternal,
			ResolutionLocalWinsWithBackup, ResolutionExternalWinsWithBackup,
			ResolutionKeepBoth:
			actions = append(actions, PlanAction{
				Kind:            ActionResolveConflict,
				VirtualPath:     c.RelativePath,
				SourcePath:      sourceDir,
				DestinationPath: destDir,
				Conflict:        &c,
			})
		}
	}
	return actions
}
