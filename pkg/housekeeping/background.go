package housekeeping

import (
	"context"
	"time"

	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

const (
	// housekeepingInterval is the interval at which housekeeping will be
	// invoked by the daemon.
	housekeepingInterval = 24 * time.Hour
)

// HousekeepRegularly provides regular housekeeping operations at a standard
// interval. It is designed to be run as a background Goroutine in a
// long-lived process. It will terminate when the provided context is
// cancelled. targetsFunc is called before each pass so that targets reflect
// the sync pairs currently configured, not just those present at startup.
func HousekeepRegularly(ctx context.Context, logger *logging.Logger, journal *store.Journal, targetsFunc func() []Target) {
	logger.Info("performing initial housekeeping")
	Housekeep(logger, journal, targetsFunc())

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("performing regular housekeeping")
			Housekeep(logger, journal, targetsFunc())
		}
	}
}
