// Package store persists serialized vocabulary snapshots. A Store holds
// exactly one snapshot and treats it as opaque bytes.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-dyntok/internal/config"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no stored vocabulary")

// Store loads and saves one serialized vocabulary snapshot.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Open returns the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	backend, err := config.NormalizeStoreBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.StoreFile:
		return NewFileStore(cfg.Path)
	case config.StoreRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", backend)
	}
}
