package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

// fileStore keeps the state as an indented JSON file
type fileStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates a store backed by the JSON file at path.
// The containing directory is created on the first Save.
func NewFileStore(path string) Store {
	return &fileStore{path: path, lock: flock.New(path + ".lock")}
}

func (f *fileStore) Load(_ context.Context) *SyncState {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("No state file found, starting fresh", "path", f.path)
		} else {
			slog.Warn("Failed to read state file, starting fresh",
				"path", f.path,
				"error", err)
		}
		return New()
	}

	st := decode(data, f.path)
	slog.Info("Loaded state",
		"path", f.path,
		"known_items", st.Len(),
		"initialized", !st.IsFirstRun())
	return st
}

func (f *fileStore) Save(_ context.Context, st *SyncState) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return syncerr.Persistence("create state directory", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Other processes may share the file
	if err := f.lock.Lock(); err != nil {
		return syncerr.Persistence("lock state", err)
	}
	defer func() {
		_ = f.lock.Unlock()
	}()

	data, err := encode(st)
	if err != nil {
		return syncerr.Persistence("save state", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return syncerr.Persistence("save state", fmt.Errorf("failed to write temporary state file: %w", err))
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return syncerr.Persistence("save state", fmt.Errorf("failed to rename state file: %w", err))
	}

	return nil
}

func (*fileStore) Close() error {
	return nil
}
