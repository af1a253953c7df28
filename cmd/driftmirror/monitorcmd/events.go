package monitorcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
)

var eventsCommand = &cobra.Command{
	Use:   "events",
	Short: "Stream daemon events (sync progress, status changes, config updates) until interrupted",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(eventsMain),
}

func eventsMain(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmd.TerminationSignals...)
	go func() {
		<-signals
		cancel()
	}()

	events, err := client().Subscribe(ctx)
	if err != nil {
		return err
	}

	for event := range events {
		if event.SyncPairID != "" {
			fmt.Printf("[%s] %s\n", event.Kind, event.SyncPairID)
		} else {
			fmt.Printf("[%s]\n", event.Kind)
		}
	}
	return nil
}
