package synccmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var nowCommand = &cobra.Command{
	Use:   "now <sync-pair-id>",
	Short: "Trigger an immediate sync of a pair, bypassing the debounce window",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(nowMain),
}

func nowMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.SyncNowRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	syncResp, ok := resp.(rpc.SyncNowResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if syncResp.Error != nil {
		return syncResp.Error.AsError()
	}
	fmt.Printf("Triggered sync for %q\n", arguments[0])
	return nil
}

var allCommand = &cobra.Command{
	Use:   "all",
	Short: "Trigger an immediate sync of every mounted pair",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(allMain),
}

func allMain(_ *cobra.Command, _ []string) error {
	resp, err := client().Call(rpc.SyncAllRequest{})
	if err != nil {
		return err
	}
	syncResp, ok := resp.(rpc.SyncAllResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if syncResp.Error != nil {
		return syncResp.Error.AsError()
	}
	fmt.Println("Triggered sync for all mounted pairs")
	return nil
}

var fileCommand = &cobra.Command{
	Use:   "file <sync-pair-id> <virtual-path>",
	Short: "Mark a single file dirty and sync its pair immediately",
	Args:  cobra.ExactArgs(2),
	Run:   cmd.Mainify(fileMain),
}

func fileMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.SyncFileRequest{SyncPairID: arguments[0], VirtualPath: arguments[1]})
	if err != nil {
		return err
	}
	syncResp, ok := resp.(rpc.SyncFileResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if syncResp.Error != nil {
		return syncResp.Error.AsError()
	}
	fmt.Printf("Triggered sync for %s in %q\n", arguments[1], arguments[0])
	return nil
}

var pauseCommand = &cobra.Command{
	Use:   "pause <sync-pair-id>",
	Short: "Pause debounced and periodic sync triggers for a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(pauseMain),
}

func pauseMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.PauseSyncRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	pauseResp, ok := resp.(rpc.PauseSyncResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if pauseResp.Error != nil {
		return pauseResp.Error.AsError()
	}
	fmt.Printf("Paused %q\n", arguments[0])
	return nil
}

var resumeCommand = &cobra.Command{
	Use:   "resume <sync-pair-id>",
	Short: "Resume a paused sync pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(resumeMain),
}

func resumeMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.ResumeSyncRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	resumeResp, ok := resp.(rpc.ResumeSyncResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if resumeResp.Error != nil {
		return resumeResp.Error.AsError()
	}
	fmt.Printf("Resumed %q\n", arguments[0])
	return nil
}

var cancelCommand = &cobra.Command{
	Use:   "cancel <sync-pair-id>",
	Short: "Cancel a pair's in-flight sync and restart its scheduling loops",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(cancelMain),
}

func cancelMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.CancelSyncRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	cancelResp, ok := resp.(rpc.CancelSyncResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if cancelResp.Error != nil {
		return cancelResp.Error.AsError()
	}
	fmt.Printf("Cancelled sync for %q\n", arguments[0])
	return nil
}
