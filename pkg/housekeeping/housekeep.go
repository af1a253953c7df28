// Package housekeeping performs the daemon's periodic and startup
// maintenance: replaying the recovery journal left behind by any renames
// interrupted by a crash (spec §4.9) and running the CacheEvictor sweep for
// every sync pair that has automatic eviction enabled (spec §4.6).
package housekeeping

import (
	"os"

	"github.com/driftmirror/driftmirror/pkg/cacheevictor"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// Target bundles one sync pair's eviction budget with the EntryStore that
// tracks its FileEntry records.
type Target struct {
	Budget  cacheevictor.Budget
	Entries *store.EntryStore
}

// Housekeep performs a single housekeeping pass: replaying journal, then
// evicting from every target whose sync pair has auto-eviction enabled.
func Housekeep(logger *logging.Logger, journal *store.Journal, targets []Target) {
	replayJournal(logger, journal)

	for _, target := range targets {
		evictor := cacheevictor.New(target.Entries, logger)
		result, err := evictor.Run(target.Budget)
		if err != nil {
			logger.Warnf("cache eviction failed for sync pair %s: %s", target.Budget.SyncPairID, err)
			continue
		}
		if len(result.EvictedPaths) > 0 {
			logger.Infof("evicted %d file(s) (%d bytes) from sync pair %s",
				len(result.EvictedPaths), result.BytesFreed, target.Budget.SyncPairID)
		}
	}
}

// replayJournal removes the orphaned temp file named by each recovery
// journal record still pending (a rename interrupted mid-flight), so the
// next sync retries the action cleanly. The records themselves stay pending
// in the journal.
func replayJournal(logger *logging.Logger, journal *store.Journal) {
	if journal == nil {
		return
	}

	records, err := journal.Replay()
	if err != nil {
		logger.Warnf("unable to replay recovery journal: %s", err)
		return
	}

	for _, record := range records {
		if err := os.Remove(record.TempPath); err != nil && !os.IsNotExist(err) {
			logger.Warnf("unable to remove stale temp file %s: %s", record.TempPath, err)
			continue
		}
		logger.Infof("recovered from interrupted rename of %s", record.VirtualPath)
	}
}
