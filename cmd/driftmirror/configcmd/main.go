// Package configcmd implements the "config" subcommand group: inspecting
// and mutating the daemon's configuration document, per spec §6.1's
// getConfig/updateConfig/addDisk/addSyncPair family.
package configcmd

import (
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

// Command is the "config" parent command, registered onto the root command.
var Command = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update the daemon's configuration",
	Args:  cmd.DisallowArguments,
	Run:   func(command *cobra.Command, _ []string) { command.Help() },
}

func init() {
	Command.AddCommand(showCommand, addDiskCommand, addSyncPairCommand)
}

func client() *rpc.Client {
	return rpc.NewClient()
}
