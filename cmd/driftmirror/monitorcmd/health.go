package monitorcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/rpc"
)

var healthCommand = &cobra.Command{
	Use:   "health",
	Short: "Check whether the daemon is reachable and healthy",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(healthMain),
}

func healthMain(_ *cobra.Command, _ []string) error {
	resp, err := client().Call(rpc.HealthCheckRequest{})
	if err != nil {
		return err
	}
	healthResp, ok := resp.(rpc.HealthCheckResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	if !healthResp.Healthy {
		return fmt.Errorf("daemon reports unhealthy")
	}
	fmt.Println("Daemon is healthy")
	return nil
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show the running daemon's version",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(versionMain),
}

func versionMain(_ *cobra.Command, _ []string) error {
	resp, err := client().Call(rpc.GetVersionRequest{})
	if err != nil {
		return err
	}
	versionResp, ok := resp.(rpc.GetVersionResponse)
	if !ok {
		return fmt.Errorf("daemon returned unexpected response type %T", resp)
	}
	fmt.Println(versionResp.Version)
	return nil
}

var prepareShutdownCommand = &cobra.Command{
	Use:   "prepare-shutdown",
	Short: "Tell the daemon to stop accepting new sync tasks ahead of a stop",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(prepareShutdownMain),
}

func prepareShutdownMain(_ *cobra.Command, _ []string) error {
	if _, err := client().Call(rpc.PrepareForShutdownRequest{}); err != nil {
		return err
	}
	fmt.Println("Daemon is now refusing new sync tasks")
	return nil
}
