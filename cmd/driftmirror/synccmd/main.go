// Package synccmd implements the "sync" subcommand group: triggering,
// pausing, and inspecting sync runs, per spec §6.1's syncNow/syncAll/
// syncFile/pauseSync/resumeSync/cancelSync/getSyncStatus/getSyncProgress/
// getSyncHistory/getSyncStatistics/getDirtyFiles/getPendingQueue/
// markFileDirty/clearFileDirty/rebuildIndex/getIndexStats family.
package synccmd

import (
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

// Command is the "sync" parent command, registered onto the root command.
var Command = &cobra.Command{
	Use:   "sync",
	Short: "Trigger and inspect sync runs",
	Args:  cmd.DisallowArguments,
	Run:   func(command *cobra.Command, _ []string) { command.Help() },
}

func init() {
	Command.AddCommand(
		nowCommand, allCommand, fileCommand, pauseCommand, resumeCommand, cancelCommand,
		statusCommand, progressCommand,
		historyCommand, statsCommand,
		dirtyCommand, pendingCommand, markDirtyCommand, clearDirtyCommand,
		rebuildIndexCommand, indexStatsCommand,
	)
}

func client() *rpc.Client {
	return rpc.NewClient()
}
