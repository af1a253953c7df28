// Package mountcmd implements the "mount" subcommand group: mounting and
// unmounting sync pairs and inspecting their mount/file status, per spec
// §6.1's mount/unmount/getMountStatus/getAllMounts/getFileStatus family.
package mountcmd

import (
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

// Command is the "mount" parent command, registered onto the root command.
var Command = &cobra.Command{
	Use:   "mount",
	Short: "Mount, unmount, and inspect sync pairs",
	Args:  cmd.DisallowArguments,
	Run:   func(command *cobra.Command, _ []string) { command.Help() },
}

func init() {
	Command.AddCommand(addCommand, removeCommand, removeAllCommand, listCommand, statusCommand, offlineCommand, readOnlyCommand, externalPathCommand)
}

// client is a small indirection point so subcommands share one construction
// site for the daemon connection.
func client() *rpc.Client {
	return rpc.NewClient()
}
