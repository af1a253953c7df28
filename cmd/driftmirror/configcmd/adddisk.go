package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var addDiskConfiguration struct {
	id         string
	name       string
	mountPath  string
	priority   int
	fileSystem string
}

var addDiskCommand = &cobra.Command{
	Use:   "add-disk",
	Short: "Register a new external disk",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(addDiskMain),
}

func init() {
	flags := addDiskCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&addDiskConfiguration.id, "id", "", "Disk identifier (required)")
	flags.StringVar(&addDiskConfiguration.name, "name", "", "Human-readable disk name")
	flags.StringVar(&addDiskConfiguration.mountPath, "mount-path", "", "Disk's mount path (required)")
	flags.IntVar(&addDiskConfiguration.priority, "priority", 0, "Disk priority")
	flags.StringVar(&addDiskConfiguration.fileSystem, "file-system", "", "Disk's file system type")
}

func addDiskMain(_ *cobra.Command, _ []string) error {
	if addDiskConfiguration.id == "" || addDiskConfiguration.mountPath == "" {
		return fmt.Errorf("--id and --mount-path are required")
	}

	disk := config.Disk{
		ID:         addDiskConfiguration.id,
		Name:       addDiskConfiguration.name,
		MountPath:  addDiskConfiguration.mountPath,
		Priority:   addDiskConfiguration.priority,
		FileSystem: addDiskConfiguration.fileSystem,
		Enabled:    true,
	}

	c := client()

	resp, err := c.Call(rpc.AddDiskRequest{Disk: disk})
	if err != nil {
		return err
	}
	addResp, ok := resp.(rpc.AddDiskResponse)
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

	fmt.Printf("Added disk %q\n", disk.ID)
	return nil
}
