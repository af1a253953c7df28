package filesystem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// DriftMirrorDataDirectoryName is the name of the driftmirror data
	// directory inside the user's home directory.
	DriftMirrorDataDirectoryName = ".driftmirror"
	// DaemonDirectoryName is the name of the daemon subdirectory within the
	// data directory; it holds the lock file and IPC socket.
	DaemonDirectoryName = "daemon"
	// StoreDirectoryName is the name of the subdirectory holding the bbolt
	// file-entry store, the sqlite history/statistics database, and the
	// recovery journal.
	StoreDirectoryName = "store"
	// ConfigurationFileName is the name of the JSON configuration document
	// inside the data directory.
	ConfigurationFileName = "config.json"
)

// HomeDirectory is the cached path to the current user's home directory.
var HomeDirectory string

// DataDirectoryPath is the path to the driftmirror data directory. It may be
// overridden by the --data-dir flag at startup, before any other package
// queries it.
var DataDirectoryPath string

func init() {
	h, err := os.UserHomeDir()
	if err != nil {
		panic(errors.Wrap(err, "unable to query user's home directory"))
	} else if h == "" {
		panic(errors.New("home directory path empty"))
	}
	HomeDirectory = h
	DataDirectoryPath = filepath.Join(HomeDirectory, DriftMirrorDataDirectoryName)
}

// SetDataDirectory overrides the data directory root, e.g. in response to the
// daemon's --data-dir flag. It must be called, if at all, before any
// subdirectory path has been computed.
func SetDataDirectory(path string) {
	if path != "" {
		DataDirectoryPath = path
	}
}

// Subpath computes (and optionally creates) a subdirectory path inside the
// driftmirror data directory.
func Subpath(create bool, pathComponents ...string) (string, error) {
	result := filepath.Join(DataDirectoryPath, filepath.Join(pathComponents...))
	if create {
		if err := os.MkdirAll(result, 0700); err != nil {
			return "", errors.Wrap(err, "unable to create subpath")
		}
	}
	return result, nil
}
