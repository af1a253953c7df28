package synccmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var rebuildIndexCommand = &cobra.Command{
	Use:   "rebuild-index <sync-pair-id>",
	Short: "Rebuild the on-disk index for a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(rebuildIndexMain),
}

func rebuildIndexMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.RebuildIndexRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	rebuildResp, ok := resp.(rpc.RebuildIndexResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if rebuildResp.Error != nil {
		return rebuildResp.Error.AsError()
	}
	fmt.Printf("Rebuilt index for %q\n", arguments[0])
	return nil
}

var indexStatsCommand = &cobra.Command{
	Use:   "index-stats <sync-pair-id>",
	Short: "Show index statistics for a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(indexStatsMain),
}

func indexStatsMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.GetIndexStatsRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	statsResp, ok := resp.(rpc.GetIndexStatsResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if statsResp.Error != nil {
		return statsResp.Error.AsError()
	}
	fmt.Printf("Total entries: %d\n", statsResp.Stats.TotalEntries)
	fmt.Printf("Dirty entries: %d\n", statsResp.Stats.DirtyCount)
	return nil
}
