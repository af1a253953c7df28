package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ChunkSize is the I/O chunk size at which long-running copies check for
// cancellation, per the 64 KiB chunk-boundary cancellation semantics of
// spec §5.
const ChunkSize = 64 * 1024

// WriteFileAtomic writes data to disk by creating a temporary file in the
// destination's directory and renaming it into place, so that a concurrent
// reader never observes a partially-written file. This is the mechanism
// SyncEngine's Copy/Update actions use for destination writes (spec §4.5) and
// that configuration/store persistence uses for durable saves.
func WriteFileAtomic(path string, data []byte, permissions os.FileMode) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), ".driftmirror-atomic-*")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary file")
	}
	name := temporary.Name()

	if _, err = temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(name)
		return errors.Wrap(err, "unable to write temporary file")
	}
	if err = temporary.Close(); err != nil {
		os.Remove(name)
		return errors.Wrap(err, "unable to close temporary file")
	}
	if err = os.Chmod(name, permissions); err != nil {
		os.Remove(name)
		return errors.Wrap(err, "unable to set temporary file permissions")
	}
	if err = os.Rename(name, path); err != nil {
		os.Remove(name)
		return errors.Wrap(err, "unable to rename temporary file into place")
	}
	return nil
}

// CopyFileAtomic copies sourcePath to destinationPath via a temporary file in
// destinationPath's directory, preserving the permissions argument, then
// renames it into place. Copying proceeds in ChunkSize-sized chunks and
// checks ctx for cancellation between each, per the chunk-boundary
// cancellation semantics of spec §5. On cancellation or error the temporary
// file is removed and the destination is left untouched, satisfying the
// "no half-written destination" property.
func CopyFileAtomic(ctx context.Context, sourcePath, destinationPath string, permissions os.FileMode) (int64, error) {
	source, err := os.Open(sourcePath)
	if err != nil {
		return 0, errors.Wrap(err, "unable to open source file")
	}
	defer source.Close()

	temporary, err := os.CreateTemp(filepath.Dir(destinationPath), ".driftmirror-atomic-*")
	if err != nil {
		return 0, errors.Wrap(err, "unable to create temporary file")
	}
	name := temporary.Name()
	removeTemp := func() { os.Remove(name) }

	written, err := copyChunked(ctx, temporary, source)
	if err != nil {
		temporary.Close()
		removeTemp()
		return written, err
	}
	if err = temporary.Close(); err != nil {
		removeTemp()
		return written, errors.Wrap(err, "unable to close temporary file")
	}
	if err = os.Chmod(name, permissions); err != nil {
		removeTemp()
		return written, errors.Wrap(err, "unable to set temporary file permissions")
	}
	if err = os.Rename(name, destinationPath); err != nil {
		removeTemp()
		return written, errors.Wrap(err, "unable to rename temporary file into place")
	}
	return written, nil
}

// copyChunked copies src to dst in ChunkSize chunks, checking ctx for
// cancellation between chunks.
func copyChunked(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buffer := make([]byte, ChunkSize)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		n, readErr := src.Read(buffer)
		if n > 0 {
			written, writeErr := dst.Write(buffer[:n])
			total += int64(written)
			if writeErr != nil {
				return total, errors.Wrap(writeErr, "unable to write chunk")
			}
		}
		if readErr == io.EOF {
			return total, nil
		} else if readErr != nil {
			return total, errors.Wrap(readErr, "unable to read chunk")
		}
	}
}
