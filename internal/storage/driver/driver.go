// Package driver opens the record store selected by configuration.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stride/internal/providers"
	"stride/internal/statistic"
	"stride/internal/storage"
	"stride/internal/storage/postgres"
	"stride/internal/storage/snapshot"
	"stride/internal/storage/sqlite"
	"stride/internal/structures"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"

	openTimeout = 10 * time.Second
)

// NewRecordStore opens the store named by conf.Store.Driver. The file driver
// only reads its snapshot when the scheduler restores it.
func NewRecordStore(conf *structures.Config, logger providers.Logger) (storage.RecordStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	switch conf.Store.Driver {
	case DriverSQLite:
		if err := ensureParent(conf.Store.DSN); err != nil {
			return nil, err
		}
		store, err := sqlite.Open(ctx, conf.Store.DSN)
		if err != nil {
			return nil, err
		}
		logger.Infof(providers.TypeApp, "Using sqlite record store at %s", conf.Store.DSN)
		return store, nil
	case DriverPostgres:
		store, err := postgres.Open(ctx, conf.Store.DSN)
		if err != nil {
			return nil, err
		}
		logger.Infof(providers.TypeApp, "Using postgres record store")
		return store, nil
	case DriverFile:
		compressor, err := statistic.NewZstdCompressor()
		if err != nil {
			return nil, fmt.Errorf("create compressor: %w", err)
		}
		logger.Infof(providers.TypeApp, "Using snapshot record store at %s", conf.Store.DSN)
		return snapshot.New(conf.Store.DSN, compressor, logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", conf.Store.Driver)
	}
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
