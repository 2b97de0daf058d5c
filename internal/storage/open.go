package storage

import (
	"fmt"
	"os"
	"path/filepath"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// Open opens the named backend at path. Badger keeps its files in the
// directory path; bolt uses path as a single file. An empty backend
// selects badger.
func Open(backend, path string) (DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	var (
		db  DB
		err error
	)
	switch backend {
	case BackendBadger, "":
		db, err = NewBadger(path)
	case BackendBolt:
		db, err = NewBolt(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	klog.Storage.Debug().Str("backend", backend).Str("path", path).Msg("Opened database")
	return db, nil
}
