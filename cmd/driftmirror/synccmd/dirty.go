package synccmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
	"github.com/driftmirror/driftmirror/pkg/store"
)

func printEntries(entries []*store.FileEntry) {
	if len(entries) == 0 {
		fmt.Println("(none)")
		return
	}
	for _, entry := range entries {
		fmt.Printf("\t%s (%s, %s)\n", entry.VirtualPath, entry.Location, humanize.Bytes(uint64(entry.Size)))
	}
}

var dirtyCommand = &cobra.Command{
	Use:   "dirty <sync-pair-id>",
	Short: "List files marked dirty for a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(dirtyMain),
}

func dirtyMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.GetDirtyFilesRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	dirtyResp, ok := resp.(rpc.GetDirtyFilesResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if dirtyResp.Error != nil {
		return dirtyResp.Error.AsError()
	}
	printEntries(dirtyResp.Entries)
	return nil
}

var pendingCommand = &cobra.Command{
	Use:   "pending <sync-pair-id>",
	Short: "List files queued for sync on a pair",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(pendingMain),
}

func pendingMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.GetPendingQueueRequest{SyncPairID: arguments[0]})
	if err != nil {
		return err
	}
	pendingResp, ok := resp.(rpc.GetPendingQueueResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if pendingResp.Error != nil {
		return pendingResp.Error.AsError()
	}
	printEntries(pendingResp.Entries)
	return nil
}

var markDirtyCommand = &cobra.Command{
	Use:   "mark-dirty <sync-pair-id> <virtual-path>",
	Short: "Manually mark a file dirty",
	Args:  cobra.ExactArgs(2),
	Run:   cmd.Mainify(markDirtyMain),
}

func markDirtyMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.MarkFileDirtyRequest{SyncPairID: arguments[0], VirtualPath: arguments[1]})
	if err != nil {
		return err
	}
	markResp, ok := resp.(rpc.MarkFileDirtyResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if markResp.Error != nil {
		return markResp.Error.AsError()
	}
	fmt.Printf("Marked %s dirty in %q\n", arguments[1], arguments[0])
	return nil
}

var clearDirtyCommand = &cobra.Command{
	Use:   "clear-dirty <sync-pair-id> <virtual-path>",
	Short: "Manually clear a file's dirty flag",
	Args:  cobra.ExactArgs(2),
	Run:   cmd.Mainify(clearDirtyMain),
}

func clearDirtyMain(_ *cobra.Command, arguments []string) error {
	resp, err := client().Call(rpc.ClearFileDirtyRequest{SyncPairID: arguments[0], VirtualPath: arguments[1]})
	if err != nil {
		return err
	}
	clearResp, ok := resp.(rpc.ClearFileDirtyResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if clearResp.Error != nil {
		return clearResp.Error.AsError()
	}
	fmt.Printf("Cleared dirty flag for %s in %q\n", arguments[1], arguments[0])
	return nil
}
