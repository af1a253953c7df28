// Package monitorcmd implements the "monitor" subcommand group: streaming
// the daemon's coordinator events and checking its liveness, per spec
// §6.1's subscribe/healthCheck/getVersion/prepareForShutdown family.
package monitorcmd

import (
	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

// Command is the "monitor" parent command, registered onto the root command.
var Command = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor daemon events and liveness",
	Args:  cmd.DisallowArguments,
	Run:   func(command *cobra.Command, _ []string) { command.Help() },
}

func init() {
	Command.AddCommand(eventsCommand, healthCommand, versionCommand, prepareShutdownCommand)
}

func client() *rpc.Client {
	return rpc.NewClient()
}
