package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/rpc"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
)

var addSyncPairConfiguration struct {
	id               string
	diskID           string
	localPath        string
	externalPath     string
	direction        string
	conflictStrategy string
}

var addSyncPairCommand = &cobra.Command{
	Use:   "add-sync-pair",
	Short: "Register a new sync pair without mounting it",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(addSyncPairMain),
}

func init() {
	flags := addSyncPairCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&addSyncPairConfiguration.id, "id", "", "Sync pair identifier (required)")
	flags.StringVar(&addSyncPairConfiguration.diskID, "disk-id", "", "Identifier of the disk this pair syncs against (required)")
	flags.StringVar(&addSyncPairConfiguration.localPath, "local-path", "", "Local directory path (required)")
	flags.StringVar(&addSyncPairConfiguration.externalPath, "external-path", "", "Path relative to the disk's mount point (required)")
	flags.StringVar(&addSyncPairConfiguration.direction, "direction", string(syncengine.DirectionBidirectional), "Sync direction")
	flags.StringVar(&addSyncPairConfiguration.conflictStrategy, "conflict-strategy", string(syncengine.StrategyNewerWins), "Conflict resolution strategy")
}

func addSyncPairMain(_ *cobra.Command, _ []string) error {
	if addSyncPairConfiguration.id == "" || addSyncPairConfiguration.diskID == "" ||
		addSyncPairConfiguration.localPath == "" || addSyncPairConfiguration.externalPath == "" {
		return fmt.Errorf("--id, --disk-id, --local-path, and --external-path are required")
	}

	pair := config.SyncPair{
		ID:                   addSyncPairConfiguration.id,
		DiskID:               addSyncPairConfiguration.diskID,
		LocalPath:            addSyncPairConfiguration.localPath,
		ExternalRelativePath: addSyncPairConfiguration.externalPath,
		Direction:            syncengine.Direction(addSyncPairConfiguration.direction),
		ConflictStrategy:     syncengine.ConflictStrategy(addSyncPairConfiguration.conflictStrategy),
		Enabled:              false,
	}

	c := client()

	resp, err := c.Call(rpc.AddSyncPairRequest{Pair: pair})
	if err != nil {
		return err
	}
	addResp, ok := resp.(rpc.AddSyncPairResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if addResp.Error != nil {
		return addResp.Error.AsError()
	}

	updateResp, err := c.Call(rpc.UpdateConfigRequest{Config: addResp.Config})
	if err != nil {
		return err
	}
	updated, ok := updateResp.(rpc.UpdateConfigResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", updateResp)
	}
	if updated.Error != nil {
		return updated.Error.AsError()
	}

	fmt.Printf("Added sync pair %q (disabled; use 'driftmirror mount add' to mount it)\n", pair.ID)
	return nil
}
