package mountcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var offlineConfiguration struct {
	offline bool
}

var offlineCommand = &cobra.Command{
	Use:   "set-offline <sync-pair-id>",
	Short: "Mark a sync pair's external disk online or offline",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(offlineMain),
}

func init() {
	flags := offlineCommand.Flags()
	flags.BoolVar(&offlineConfiguration.offline, "offline", true, "Mark the disk offline (use --offline=false to mark it online)")
}

func offlineMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.SetExternalOfflineRequest{SyncPairID: arguments[0], Offline: offlineConfiguration.offline})
	if err != nil {
		return err
	}
	offlineResp, ok := resp.(rpc.SetExternalOfflineResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if offlineResp.Error != nil {
		return offlineResp.Error.AsError()
	}
	fmt.Printf("Updated external disk status for %q\n", arguments[0])
	return nil
}

var readOnlyConfiguration struct {
	readOnly bool
}

var readOnlyCommand = &cobra.Command{
	Use:   "set-read-only <sync-pair-id>",
	Short: "Mark a sync pair read-only or read-write",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(readOnlyMain),
}

func init() {
	flags := readOnlyCommand.Flags()
	flags.BoolVar(&readOnlyConfiguration.readOnly, "read-only", true, "Mark the pair read-only (use --read-only=false to restore read-write)")
}

func readOnlyMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.SetReadOnlyRequest{SyncPairID: arguments[0], ReadOnly: readOnlyConfiguration.readOnly})
	if err != nil {
		return err
	}
	readOnlyResp, ok := resp.(rpc.SetReadOnlyResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if readOnlyResp.Error != nil {
		return readOnlyResp.Error.AsError()
	}
	fmt.Printf("Updated read-only status for %q\n", arguments[0])
	return nil
}

var externalPathCommand = &cobra.Command{
	Use:   "update-external-path <sync-pair-id> <new-path>",
	Short: "Update the external-relative path a sync pair watches",
	Args:  cobra.ExactArgs(2),
	Run:   cmd.Mainify(externalPathMain),
}

func externalPathMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.UpdateExternalPathRequest{SyncPairID: arguments[0], NewPath: arguments[1]})
	if err != nil {
		return err
	}
	pathResp, ok := resp.(rpc.UpdateExternalPathResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if pathResp.Error != nil {
		return pathResp.Error.AsError()
	}
	fmt.Printf("Updated external path for %q\n", arguments[0])
	return nil
}
