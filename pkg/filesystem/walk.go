package filesystem

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// WalkEntry describes one file or directory discovered by Walk.
type WalkEntry struct {
	// VirtualPath is the path relative to the root that was walked, using
	// forward slashes, never starting with "/".
	VirtualPath string
	// Info is the os.FileInfo for the entry.
	Info os.FileInfo
}

// Walk performs a deterministic breadth-first traversal of root, invoking
// visit for every regular file, directory, and symlink encountered
// (directories are visited before their contents). It mirrors the
// breadth-first walk order that the Indexer's scan phase relies on (spec
// §4.3): a sync pair's local and external trees are walked in the same
// order so that corresponding entries can be compared level-by-level.
//
// If root does not exist, Walk returns nil without invoking visit (an
// offline or not-yet-created side of a sync pair simply contributes no
// entries).
func Walk(root string, visit func(WalkEntry) error) error {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "unable to stat walk root")
	}

	type queued struct {
		absolute string
		virtual  string
	}
	queue := []queued{{absolute: root, virtual: ""}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := os.ReadDir(current.absolute)
		if err != nil {
			return errors.Wrapf(err, "unable to read directory %q", current.absolute)
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

		for _, child := range children {
			info, err := child.Info()
			if err != nil {
				return errors.Wrapf(err, "unable to stat %q", child.Name())
			}
			virtual := child.Name()
			if current.virtual != "" {
				virtual = current.virtual + "/" + child.Name()
			}
			absolute := filepath.Join(current.absolute, child.Name())

			if err := visit(WalkEntry{VirtualPath: virtual, Info: info}); err != nil {
				return err
			}

			if info.IsDir() {
				queue = append(queue, queued{absolute: absolute, virtual: virtual})
			}
		}
	}
	return nil
}
