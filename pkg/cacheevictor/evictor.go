// Package cacheevictor implements the CacheEvictor of spec §4.6: invoked
// periodically per sync pair and on low-space events, it removes local
// copies of files that also exist externally until the pair's cache budget
// and target free space are satisfied. Budget.ReserveBuffer is not read.
package cacheevictor

import (
	"os"
	"sort"
	"time"

	"github.com/driftmirror/driftmirror/pkg/filesystem"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// Strategy selects the candidate ordering used when ranking files for
// eviction, per spec §4.6's ordering table.
type Strategy string

const (
	StrategyModifiedTime Strategy = "modifiedTime"
	StrategyAccessTime   Strategy = "accessTime"
	StrategySizeFirst    Strategy = "sizeFirst"
)

// Budget describes one sync pair's cache budget, per spec §4.6.
type Budget struct {
	SyncPairID        string
	LocalDir          string
	Strategy          Strategy
	MaxLocalCacheSize int64
	TargetFreeSpace   int64
	ReserveBuffer     int64
}

// Result summarizes one eviction pass.
type Result struct {
	EvictedPaths []string
	BytesFreed   int64
	Errors       []error
}

// Evictor implements the CacheEvictor of spec §4.6.
type Evictor struct {
	entries *store.EntryStore
	logger  *logging.Logger
}

// New creates an Evictor backed by the given EntryStore.
func New(entries *store.EntryStore, logger *logging.Logger) *Evictor {
	return &Evictor{entries: entries, logger: logger.Sublogger("cacheevictor")}
}

// Run performs one eviction pass for budget, evicting candidates (ranked per
// budget.Strategy) until either the pair's cache-size/target-free-space
// target is satisfied or no eligible candidates remain. A single
// candidate's failure is logged and eviction continues with the next
// (spec §4.6, "Failure of a single file logs the error and continues").
func (e *Evictor) Run(budget Budget) (*Result, error) {
	candidates, err := e.entries.ListEvictable(budget.SyncPairID)
	if err != nil {
		return nil, err
	}
	rankCandidates(candidates, budget.Strategy)

	target, err := e.bytesToFree(budget)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, candidate := range candidates {
		if target <= 0 {
			break
		}
		if !eligible(candidate) {
			continue
		}

		freed, err := e.evictOne(budget, candidate)
		if err != nil {
			e.logger.Warnf("unable to evict %q: %s", candidate.VirtualPath, err)
			result.Errors = append(result.Errors, err)
			continue
		}

		target -= freed
		result.BytesFreed += freed
		result.EvictedPaths = append(result.EvictedPaths, candidate.VirtualPath)
	}

	return result, nil
}

// bytesToFree computes how many bytes an eviction pass needs to free: the
// amount by which the pair's local cache exceeds maxLocalCacheSize, plus the
// amount by which free space on LocalDir's volume falls short of
// targetFreeSpace. Space already free on the volume is subtracted from
// targetFreeSpace, so the result is not the plain
// "(current cache size − maxLocalCacheSize) + targetFreeSpace" sum. Each
// part is floored at 0, and a FreeSpace error leaves the second part at 0.
func (e *Evictor) bytesToFree(budget Budget) (int64, error) {
	var overBudget int64
	if budget.MaxLocalCacheSize > 0 {
		used, err := localCacheSize(e.entries, budget.SyncPairID)
		if err != nil {
			return 0, err
		}
		if used > budget.MaxLocalCacheSize {
			overBudget = used - budget.MaxLocalCacheSize
		}
	}

	var shortfall int64
	if budget.TargetFreeSpace > 0 {
		free, err := filesystem.FreeSpace(budget.LocalDir)
		if err == nil && int64(free) < budget.TargetFreeSpace {
			shortfall = budget.TargetFreeSpace - int64(free)
		}
	}

	total := overBudget + shortfall
	if total < 0 {
		total = 0
	}
	return total, nil
}

// localCacheSize sums the size of every entry currently present locally for
// the pair.
func localCacheSize(entries *store.EntryStore, syncPairID string) (int64, error) {
	all, err := entries.ListAll(syncPairID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range all {
		if entry.Location == store.LocationLocalOnly || entry.Location == store.LocationBoth {
			total += entry.Size
		}
	}
	return total, nil
}

// eligible implements spec §4.6's exclusions: eviction never touches dirty
// files, files currently locked for an active sync, or files whose
// external side is unreachable (i.e. not present both-sides in the Store).
// ListEvictable already filters on the same conditions; this re-checks the
// record as listed and does not read the Store again.
func eligible(entry *store.FileEntry) bool {
	return !entry.IsDirty && entry.LockState != store.LockStateSyncLocked && entry.Location == store.LocationBoth
}

// evictOne deletes candidate's local file, transitions its Store location
// from both to externalOnly, and returns the number of bytes freed, per
// spec §4.6's per-candidate procedure.
func (e *Evictor) evictOne(budget Budget, candidate *store.FileEntry) (int64, error) {
	now := time.Now()
	if err := e.entries.Lock(budget.SyncPairID, candidate.VirtualPath, store.LockDirectionExternalToLocal, now); err != nil {
		return 0, err
	}
	defer e.entries.Unlock(budget.SyncPairID, candidate.VirtualPath)

	if err := os.Remove(candidate.LocalPath); err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	if err := e.entries.UpdateLocation(budget.SyncPairID, candidate.VirtualPath, store.LocationExternalOnly, "", candidate.ExternalPath); err != nil {
		return 0, err
	}

	return candidate.Size, nil
}

// rankCandidates sorts candidates in place per spec §4.6's ordering table.
func rankCandidates(candidates []*store.FileEntry, strategy Strategy) {
	switch strategy {
	case StrategyAccessTime:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].AccessedAt.Before(candidates[j].AccessedAt)
		})
	case StrategySizeFirst:
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Size != candidates[j].Size {
				return candidates[i].Size > candidates[j].Size
			}
			return candidates[i].AccessedAt.Before(candidates[j].AccessedAt)
		})
	default: // StrategyModifiedTime
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].ModifiedAt.Before(candidates[j].ModifiedAt)
		})
	}
}
