package synccmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var statusConfiguration struct {
	all bool
}

var statusCommand = &cobra.Command{
	Use:   "status [<sync-pair-id>]",
	Short: "Show the current sync status of one or every mounted pair",
	Args:  cobra.MaximumNArgs(1),
	Run:   cmd.Mainify(statusMain),
}

func init() {
	flags := statusCommand.Flags()
	flags.BoolVar(&statusConfiguration.all, "all", false, "Show every mounted pair's status")
}

func statusMain(_ *cobra.Command, arguments []string) error {
	if statusConfiguration.all || len(arguments) == 0 {
		resp, err := client().Call(rpc.GetAllSyncStatusRequest{})
		if err != nil {
			return err
		}
		allResp, ok := resp.(rpc.GetAllSyncStatusResponse)
		if !ok {
			return fmt.Errorf("daemon returned unexpected response type %T", resp)
		}
		for _, status := range allResp.Statuses {
			printMountInfo(status)
		}
		return nil
	}

	resp, err := client().Call(rpc.GetSyncStatusRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	statusResp, ok := resp.(rpc.GetSyncStatusResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if statusResp.Error != nil {
		return statusResp.Error.AsError()
	}
	printMountInfo(*statusResp.Status)
	return nil
}

func printMountInfo(status coordinator.MountInfo) {
	fmt.Printf("Sync pair: %s\n", status.SyncPairID)
	if status.Paused {
		fmt.Println("\tStatus:", color.YellowString("paused"))
	} else if !status.ExternalOnline {
		fmt.Println("\tStatus:", color.YellowString("external disk offline"))
	} else {
		fmt.Println("\tStatus: active")
	}
	if status.ReadOnly {
		fmt.Println("\tMode: read-only")
	}
}

var progressCommand = &cobra.Command{
	Use:   "progress <sync-pair-id>",
	Short: "Stream sync progress for a pair until interrupted",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(progressMain),
}

func progressMain(_ *cobra.Command, arguments []string) error {
	syncPairID := arguments[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmd.TerminationSignals...)
	go func() {
		<-signals
		cancel()
	}()

	printer := &cmd.StatusLinePrinter{}
	defer printer.BreakIfNonEmpty()

	var previousIndex uint64
	for {
		resp, err := client().Call(rpc.GetSyncProgressRequest{SyncPairID: syncPairID, PreviousIndex: previousIndex})
		if err != nil {
			return err
		}
		progressResp, ok := resp.(rpc.GetSyncProgressResponse)
		if !ok {
			return fmt.Errorf("daemon returned unexpected response type %T", resp)
		}
		if progressResp.Error != nil {
			return progressResp.Error.AsError()
		}
		previousIndex = progressResp.Index

		statusResp, err := client().Call(rpc.GetSyncStatusRequest{SyncPairID: syncPairID})
		if err != nil {
			return err
		}
		syncStatus, ok := statusResp.(rpc.GetSyncStatusResponse)
		if !ok {
			return fmt.Errorf("daemon returned unexpected response type %T", statusResp)
		}
		if syncStatus.Error != nil {
			return syncStatus.Error.AsError()
		}

		line := syncPairID
		if syncStatus.Status.Paused {
			line += " " + color.YellowString("[Paused]")
		} else if !syncStatus.Status.ExternalOnline {
			line += " " + color.YellowString("[Offline]")
		} else {
			line += " active"
		}
		printer.Print(line)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
