package mountcmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var listCommand = &cobra.Command{
	Use:   "list",
	Short: "List mounted sync pairs",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(listMain),
}

func listMain(_ *cobra.Command, _ []string) error {
	resp, err := client().Call(rpc.GetAllMountsRequest{})
	if err != nil {
		return err
	}
	mountsResp, ok := resp.(rpc.GetAllMountsResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}

	if len(mountsResp.Mounts) == 0 {
		fmt.Println("No sync pairs are mounted")
		return nil
	}

	for _, mount := range mountsResp.Mounts {
		fmt.Printf("Sync pair: %s\n", mount.SyncPairID)
		fmt.Printf("\tTarget: %s\n", mount.TargetDir)
		if mount.ExternalOnline {
			fmt.Println("\tExternal disk: online")
		} else {
			fmt.Println("\tExternal disk:", color.YellowString("offline"))
		}
		if mount.Paused {
			fmt.Println("\tStatus:", color.YellowString("paused"))
		} else {
			fmt.Println("\tStatus: active")
		}
		if mount.ReadOnly {
			fmt.Println("\tMode: read-only")
		}
	}
	return nil
}

var statusConfiguration struct {
	path string
}

var statusCommand = &cobra.Command{
	Use:   "status <sync-pair-id>",
	Short: "Show mount or file status for a sync pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(statusMain),
}

func init() {
	flags := statusCommand.Flags()
	flags.StringVar(&statusConfiguration.path, "path", "", "Show status for a single virtual path instead of the whole pair")
}

func statusMain(_ *cobra.Command, arguments []string) error {
	syncPairID := arguments[0]

	if statusConfiguration.path == "" {
		resp, err := client().Call(rpc.GetMountStatusRequest{SyncPairID: syncPairID})
		if err != nil {
			return err
		}
		statusResp, ok := resp.(rpc.GetMountStatusResponse)
		if !ok {
			return fmt.Errorf("daemon returned unexpected response type %T", resp)
		}
		if statusResp.Mounted {
			fmt.Printf("%s: mounted\n", syncPairID)
		} else {
			fmt.Printf("%s: %s\n", syncPairID, color.YellowString("not mounted"))
		}
		return nil
	}

	resp, err := client().Call(rpc.GetFileStatusRequest{SyncPairID: syncPairID, VirtualPath: statusConfiguration.path})
	if err != nil {
		return err
	}
	fileResp, ok := resp.(rpc.GetFileStatusResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if fileResp.Error != nil {
		return fileResp.Error.AsError()
	}
	if fileResp.Entry == nil {
		fmt.Printf("%s: no entry for %s\n", syncPairID, statusConfiguration.path)
		return nil
	}

	entry := fileResp.Entry
	fmt.Printf("%s (%s)\n", entry.VirtualPath, entry.Location)
	fmt.Printf("\tSize: %s\n", humanize.Bytes(uint64(entry.Size)))
	fmt.Printf("\tModified: %s\n", humanize.Time(entry.ModifiedAt))
	if entry.IsDirty {
		fmt.Println("\tDirty:", color.YellowString("yes"))
	} else {
		fmt.Println("\tDirty: no")
	}
	if entry.LockState != "unlocked" {
		fmt.Println("\tLock:", color.YellowString(string(entry.LockState)))
	}
	return nil
}
