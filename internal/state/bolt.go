package state

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

var (
	bucketState = []byte("state")
	keySnapshot = []byte("snapshot")
)

// boltStore keeps the JSON snapshot under a single key of a bbolt bucket
type boltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) the bbolt database at path
func NewBoltStore(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create state bucket: %w", err)
	}

	return &boltStore{db: db, path: path}, nil
}

func (s *boltStore) Load(_ context.Context) *SyncState {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return nil
		}
		// Bytes returned by Get are only valid for the transaction
		if v := b.Get(keySnapshot); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Failed to read state from bolt db, starting fresh",
			"path", s.path,
			"error", err)
		return New()
	}
	if data == nil {
		slog.Info("No state snapshot found, starting fresh", "path", s.path)
		return New()
	}

	st := decode(data, s.path)
	slog.Info("Loaded state",
		"path", s.path,
		"known_items", st.Len(),
		"initialized", !st.IsFirstRun())
	return st
}

func (s *boltStore) Save(_ context.Context, st *SyncState) error {
	data, err := encode(st)
	if err != nil {
		return syncerr.Persistence("save state", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketState)
		if err != nil {
			return err
		}
		return b.Put(keySnapshot, data)
	})
	if err != nil {
		return syncerr.Persistence("save state", fmt.Errorf("failed to write bolt snapshot: %w", err))
	}
	return nil
}

func (s *boltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
