//go:build windows
// +build windows

package must

import (
	"github.com/driftmirror/driftmirror/pkg/logging"
	"golang.org/x/sys/windows"
)

func CloseWindowsHandle(wh windows.Handle, logger *logging.Logger) {
	if err := windows.CloseHandle(wh); err != nil {
		logger.Warnf("Unable to close handle %d: %s", wh, err.Error())
	}
}
