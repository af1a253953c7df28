package synccmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
	"github.com/driftmirror/driftmirror/pkg/store"
)

var historyConfiguration struct {
	limit int
}

var historyCommand = &cobra.Command{
	Use:   "history <sync-pair-id>",
	Short: "Show recent sync runs for a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(historyMain),
}

func init() {
	flags := historyCommand.Flags()
	flags.IntVar(&historyConfiguration.limit, "limit", 10, "Maximum number of runs to show")
}

func historyMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.GetSyncHistoryRequest{SyncPairID: arguments[0], Limit: historyConfiguration.limit})
	if err != nil {
		return err
	}
	historyResp, ok := resp.(rpc.GetSyncHistoryResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if historyResp.Error != nil {
		return historyResp.Error.AsError()
	}

	if len(historyResp.History) == 0 {
		fmt.Println("No sync history recorded")
		return nil
	}

	for _, run := range historyResp.History {
		fmt.Printf("%s: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), describeRunStatus(run.Status))
		fmt.Printf("\tDirection: %s\n", run.Direction)
		fmt.Printf("\tFiles: %d (%s)\n", run.FilesCount, humanize.Bytes(uint64(run.TotalSize)))
		if run.ErrorMessage != nil {
			fmt.Println("\tError:", color.RedString(*run.ErrorMessage))
		}
	}
	return nil
}

func describeRunStatus(status store.RunStatus) string {
	switch status {
	case store.RunStatusCompleted:
		return "completed"
	case store.RunStatusFailed:
		return color.RedString("failed")
	case store.RunStatusCancelled:
		return color.YellowString("cancelled")
	case store.RunStatusInProgress:
		return "in progress"
	default:
		return string(status)
	}
}

var statsConfiguration struct {
	startDate string
	endDate   string
}

var statsCommand = &cobra.Command{
	Use:   "stats <sync-pair-id>",
	Short: "Show aggregated sync statistics for a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(statsMain),
}

func init() {
	flags := statsCommand.Flags()
	flags.StringVar(&statsConfiguration.startDate, "start-date", "", "Earliest date (YYYY-MM-DD) to include")
	flags.StringVar(&statsConfiguration.endDate, "end-date", "", "Latest date (YYYY-MM-DD) to include")
}

func statsMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.GetSyncStatisticsRequest{
		SyncPairID: arguments[0],
		StartDate:  statsConfiguration.startDate,
		EndDate:    statsConfiguration.endDate,
	})
	if err != nil {
		return err
	}
	statsResp, ok := resp.(rpc.GetSyncStatisticsResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if statsResp.Error != nil {
		return statsResp.Error.AsError()
	}

	if len(statsResp.Statistics) == 0 {
		fmt.Println("No statistics recorded")
		return nil
	}

	for _, day := range statsResp.Statistics {
		fmt.Printf("%s: %d runs (%d succeeded, %d failed)\n", day.Date, day.Runs, day.Successes, day.Failures)
		fmt.Printf("\tFiles: %d, Transferred: %s, Avg duration: %.0fms\n",
			day.TotalFiles, humanize.Bytes(uint64(day.TotalBytes)), day.AvgDurationMs)
	}
	return nil
}
