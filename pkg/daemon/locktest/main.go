package main

import (
	"fmt"
	"os"

	"github.com/driftmirror/driftmirror/pkg/daemon"
	"github.com/driftmirror/driftmirror/pkg/logging"
)

func main() {
	logger := logging.NewLogger(logging.LevelError, os.Stderr)
	if lock, err := daemon.AcquireLock(logger); err != nil {
		fmt.Fprintln(os.Stderr, "daemon lock acquisition failed")
		os.Exit(1)
	} else {
		lock.Release()
	}
}
