package mountcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/rpc"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
)

var addConfiguration struct {
	id               string
	diskID           string
	localPath        string
	externalPath     string
	direction        string
	conflictStrategy string
	createSymlink    bool
}

var addCommand = &cobra.Command{
	Use:   "add",
	Short: "Mount a sync pair",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(addMain),
}

func init() {
	flags := addCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&addConfiguration.id, "id", "", "Sync pair identifier (required)")
	flags.StringVar(&addConfiguration.diskID, "disk-id", "", "Identifier of the disk this pair syncs against (required)")
	flags.StringVar(&addConfiguration.localPath, "local-path", "", "Local directory path (required)")
	flags.StringVar(&addConfiguration.externalPath, "external-path", "", "Path relative to the disk's mount point (required)")
	flags.StringVar(&addConfiguration.direction, "direction", string(syncengine.DirectionBidirectional), "Sync direction (localToExternal|externalToLocal|bidirectional)")
	flags.StringVar(&addConfiguration.conflictStrategy, "conflict-strategy", string(syncengine.StrategyNewerWins), "Conflict resolution strategy")
	flags.BoolVar(&addConfiguration.createSymlink, "create-symlink", false, "Create a symlink at the local path once synced")
}

func addMain(_ *cobra.Command, _ []string) error {
	if addConfiguration.id == "" || addConfiguration.diskID == "" || addConfiguration.localPath == "" || addConfiguration.externalPath == "" {
		return fmt.Errorf("--id, --disk-id, --local-path, and --external-path are required")
	}

	pair := config.SyncPair{
		ID:                   addConfiguration.id,
		DiskID:               addConfiguration.diskID,
		LocalPath:            addConfiguration.localPath,
		ExternalRelativePath: addConfiguration.externalPath,
		Direction:            syncengine.Direction(addConfiguration.direction),
		ConflictStrategy:     syncengine.ConflictStrategy(addConfiguration.conflictStrategy),
		CreateSymlink:        addConfiguration.createSymlink,
		Enabled:              true,
	}

	resp, err := client().Call(rpc.MountRequest{Pair: pair})
	if err != nil {
		return err
	}
	mountResp, ok := resp.(rpc.MountResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if mountResp.Error != nil {
		return mountResp.Error.AsError()
	}

	fmt.Printf("Mounted sync pair %q\n", pair.ID)
	return nil
}
