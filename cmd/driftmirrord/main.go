// Command driftmirrord is the driftmirror daemon entry point (spec §6): it
// owns the Coordinator, the persistent Store, and the RPC listener for the
// lifetime of the process.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftmirror/driftmirror/cmd"
	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/daemon"
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/filesystem"
	"github.com/driftmirror/driftmirror/pkg/housekeeping"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/rpc"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// Exit codes, per spec §6: "0 clean, 1 configuration error, 2 store error,
// 3 permission error, 4 unrecoverable runtime error".
const (
	exitClean              = 0
	exitConfigurationError = 1
	exitStoreError         = 2
	exitPermissionError    = 3
	exitRuntimeError       = 4
)

var configuration struct {
	configPath string
	dataDir    string
	logLevel   string
	foreground bool
}

var rootCommand = &cobra.Command{
	Use:          "driftmirrord",
	Short:        "Run the driftmirror daemon",
	Args:         cmd.DisallowArguments,
	SilenceUsage: true,
	SilenceErrors: true,
	RunE:         run,
}

func init() {
	flags := rootCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&configuration.configPath, "config", "", "Path to the configuration document (default: <data-dir>/config.json)")
	flags.StringVar(&configuration.dataDir, "data-dir", "", "Path to the daemon's data directory (default: ~/.driftmirror)")
	flags.StringVar(&configuration.logLevel, "log-level", "info", "Logging level (disabled|error|warn|info|debug|trace)")
	flags.BoolVar(&configuration.foreground, "foreground", false, "Also log to standard error")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Error(err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to one of spec §6's exit codes via the
// dmerrors taxonomy the daemon's own components already classify errors
// into.
func exitCodeFor(err error) int {
	switch dmerrors.CodeOf(err) {
	case dmerrors.CodeInvalidConfig, dmerrors.CodeInvalidPath:
		return exitConfigurationError
	case dmerrors.CodeStoreError:
		return exitStoreError
	case dmerrors.CodePermissionDenied:
		return exitPermissionError
	default:
		return exitRuntimeError
	}
}

func run(_ *cobra.Command, _ []string) error {
	level, ok := logging.NameToLevel(configuration.logLevel)
	if !ok {
		return dmerrors.New(dmerrors.CodeInvalidConfig, "invalid log level").With("logLevel", configuration.logLevel)
	}

	filesystem.SetDataDirectory(configuration.dataDir)

	logFile, err := daemon.OpenLog()
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodePermissionDenied, "unable to open daemon log")
	}
	defer logFile.Close()

	var writer io.Writer = logFile
	if configuration.foreground {
		writer = io.MultiWriter(logFile, os.Stderr)
	}
	logger := logging.NewLogger(level, writer)

	lock, err := daemon.AcquireLock(logger)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodePermissionDenied, "unable to acquire daemon lock")
	}
	defer lock.Release()

	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, cmd.TerminationSignals...)

	configPath := configuration.configPath
	if configPath == "" {
		configPath = filepath.Join(filesystem.DataDirectoryPath, filesystem.ConfigurationFileName)
	}
	doc, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return dmerrors.Wrap(err, dmerrors.CodeInvalidConfig, "unable to load configuration")
		}
		doc = config.Default()
		if err := config.Save(configPath, doc); err != nil {
			return dmerrors.Wrap(err, dmerrors.CodeInvalidConfig, "unable to write default configuration")
		}
	}

	storeDir, err := filesystem.Subpath(true, filesystem.StoreDirectoryName)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to compute store directory")
	}
	st, err := store.Open(storeDir, logger)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to open store")
	}
	defer st.Close()

	coord := coordinator.New(st, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx, configPath, doc); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to start coordinator")
	}
	defer coord.Shutdown()

	housekeepingCtx, cancelHousekeeping := context.WithCancel(ctx)
	defer cancelHousekeeping()
	go housekeeping.HousekeepRegularly(housekeepingCtx, logger.Sublogger("housekeeping"), st.Journal, coord.EvictionTargets)

	listener, err := daemon.NewListener()
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodePermissionDenied, "unable to create IPC listener")
	}
	defer listener.Close()

	server := rpc.NewServer(listener, coord, logger)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(ctx)
	}()

	select {
	case s := <-terminationSignals:
		logger.Info("received termination signal:", s)
		return nil
	case err := <-serverErrors:
		if err != nil {
			return dmerrors.Wrap(err, dmerrors.CodeInternal, "RPC server terminated abnormally")
		}
		return nil
	}
}
