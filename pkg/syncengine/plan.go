// Package syncengine implements the planner and executor of spec §4.5: it
// snapshots both sides of a sync pair, produces a SyncPlan of actions,
// resolves conflicts, and executes the plan under per-file locks with retry
// and verification.
package syncengine

import "time"

// Direction is the direction a sync run transfers content in.
type Direction string

const (
	DirectionLocalToExternal Direction = "localToExternal"
	DirectionExternalToLocal Direction = "externalToLocal"
	DirectionBidirectional   Direction = "bidirectional"
)

// ActionKind identifies the kind of filesystem operation a PlanAction
// performs, per spec §4's SyncPlan action variants.
type ActionKind string

const (
	ActionCopy            ActionKind = "copy"
	ActionUpdate          ActionKind = "update"
	ActionDelete          ActionKind = "delete"
	ActionCreateDirectory ActionKind = "createDirectory"
	ActionCreateSymlink   ActionKind = "createSymlink"
	ActionResolveConflict ActionKind = "resolveConflict"
	ActionSkip            ActionKind = "skip"
)

// PlanAction is a single unit of work in a SyncPlan.
type PlanAction struct {
	Kind            ActionKind
	VirtualPath     string
	SourcePath      string
	DestinationPath string
	SkipReason      string
	Conflict        *ConflictInfo

	// Depth is the number of "/" separators in VirtualPath (its path
	// components minus one), used to order
	// actions by ascending depth within the "files" group of spec §4.5 step
	// 5 ("directories first, then files by ascending depth; deletes last").
	Depth int
}

// ConflictType enumerates the kinds of conflict a ConflictInfo can record,
// per spec §4's ConflictInfo variants.
type ConflictType string

const (
	ConflictBothModified        ConflictType = "bothModified"
	ConflictDeletedOnLocal      ConflictType = "deletedOnLocal"
	ConflictDeletedOnExternal   ConflictType = "deletedOnExternal"
	ConflictTypeChanged         ConflictType = "typeChanged"
	ConflictPermissionConflict  ConflictType = "permissionConflict"
)

// Resolution enumerates how a ConflictInfo was, or will be, resolved, per
// spec §4.5 step 4.
type Resolution string

const (
	ResolutionKeepLocal             Resolution = "keepLocal"
	ResolutionKeepExternal           Resolution = "keepExternal"
	ResolutionLocalWinsWithBackup    Resolution = "localWinsWithBackup"
	ResolutionExternalWinsWithBackup Resolution = "externalWinsWithBackup"
	ResolutionKeepBoth               Resolution = "keepBoth"
	ResolutionSkip                   Resolution = "skip"
)

// ConflictStrategy selects how ConflictInfo.Resolution is computed during
// the Resolve phase (spec §4.5 step 4).
type ConflictStrategy string

const (
	StrategyKeepLocal             ConflictStrategy = "keepLocal"
	StrategyKeepExternal           ConflictStrategy = "keepExternal"
	StrategyNewerWins              ConflictStrategy = "newerWins"
	StrategyLocalWinsWithBackup    ConflictStrategy = "localWinsWithBackup"
	StrategyExternalWinsWithBackup ConflictStrategy = "externalWinsWithBackup"
	StrategyKeepBoth               ConflictStrategy = "keepBoth"
	StrategyManual                 ConflictStrategy = "manual"
)

// ConflictInfo records one path where local and external disagree, per
// spec §4's ConflictInfo type.
type ConflictInfo struct {
	RelativePath string
	LocalMeta    *SideMeta
	ExternalMeta *SideMeta
	ConflictType ConflictType
	Resolution   Resolution
}

// SideMeta is the metadata snapshot used to compare one side of a conflict.
type SideMeta struct {
	Size     int64
	ModTime  time.Time
	Checksum string
}

// Plan is the transient, unpersisted SyncPlan of spec §4: constructed per
// run and discarded on completion (spec §3 "Ownership").
type Plan struct {
	ID              string
	SyncPairID      string
	Direction       Direction
	SourcePath      string
	DestinationPath string
	Actions         []PlanAction
	Conflicts       []ConflictInfo
}
