// Command driftmirror is the CLI client for the driftmirrord daemon (spec
// §6.1): a thin wrapper around pkg/rpc.Client exposing the daemon's named
// operations as a tree of subcommands, one package per concern.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/cmd/driftmirror/configcmd"
	"github.com/driftmirror/driftmirror/cmd/driftmirror/monitorcmd"
	"github.com/driftmirror/driftmirror/cmd/driftmirror/mountcmd"
	"github.com/driftmirror/driftmirror/cmd/driftmirror/synccmd"
	"github.com/driftmirror/driftmirror/pkg/driftmirror"
)

var rootCommand = &cobra.Command{
	Use:          "driftmirror",
	Short:        "Control the driftmirror daemon",
	Args:         cmd.DisallowArguments,
	SilenceUsage: true,
	Run: func(command *cobra.Command, _ []string) {
		if rootConfiguration.version {
			fmt.Println(driftmirror.Version)
			return
		}
		command.Help()
	},
}

var rootConfiguration struct {
	// help indicates whether or not help information was requested.
	help bool
	// version indicates whether or not version information was requested.
	version bool
}

func init() {
	// Disable Cobra's alphabetical sorting so that subcommands are listed in
	// the order they're registered below, and silence its "Run 'x.exe'
	// without arguments" Windows nag, matching the daemon CLI's conventions.
	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		mountcmd.Command,
		synccmd.Command,
		configcmd.Command,
		monitorcmd.Command,
	)

	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "v", false, "Show version information")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Error(err)
		os.Exit(1)
	}
}
