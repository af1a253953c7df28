package configcmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var showCommand = &cobra.Command{
	Use:   "show",
	Short: "Print the daemon's current configuration document as JSON",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(showMain),
}

func showMain(_ *cobra.Command, _ []string) error {
	resp, err := client().Call(rpc.GetConfigRequest{})
	if err != nil {
		return err
	}
	configResp, ok := resp.(rpc.GetConfigResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}

	encoded, err := json.MarshalIndent(configResp.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to format configuration: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
