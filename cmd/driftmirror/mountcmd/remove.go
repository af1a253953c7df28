package mountcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var removeCommand = &cobra.Command{
	Use:   "remove <sync-pair-id>",
	Short: "Unmount a sync pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(removeMain),
}

func removeMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.UnmountRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	unmountResp, ok := resp.(rpc.UnmountResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if unmountResp.Error != nil {
		return unmountResp.Error.AsError()
	}
	fmt.Printf("Unmounted sync pair %q\n", arguments[0])
	return nil
}

var removeAllCommand = &cobra.Command{
	Use:   "remove-all",
	Short: "Unmount every mounted sync pair",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(removeAllMain),
}

func removeAllMain(_ *cobra.Command, _ []string) error {
	resp, err := client().Call(rpc.UnmountAllRequest{})
	if err != nil {
		return err
	}
	unmountResp, ok := resp.(rpc.UnmountAllResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if unmountResp.Error != nil {
		return unmountResp.Error.AsError()
	}
	fmt.Println("Unmounted all sync pairs")
	return nil
}
