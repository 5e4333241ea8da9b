package command

import (
	"context"
	"fmt"
	"os"

	"github.com/pixil98/go-dbo/internal/storage"
	"github.com/pixil98/go-errors"
)

type StorageDriver int

const (
	StorageDriverMemory StorageDriver = iota
	StorageDriverRedis
	StorageDriverSQLite
)

func (sd *StorageDriver) UnmarshalText(text []byte) error {
	switch string(text) {
	case "memory":
		*sd = StorageDriverMemory
	case "redis":
		*sd = StorageDriverRedis
	case "sqlite":
		*sd = StorageDriverSQLite
	default:
		return fmt.Errorf("unknown storage driver: %s", text)
	}
	return nil
}

type StorageConfig struct {
	Driver     StorageDriver `json:"driver"`
	Redis      RedisConfig   `json:"redis"`
	SQLitePath string        `json:"sqlite_path"`

	// AssetsPath is imported on startup when set. Existing objects are kept.
	AssetsPath string `json:"assets_path"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Driver {
	case StorageDriverRedis:
		if c.Redis.Addr == "" {
			el.Add(fmt.Errorf("storage: redis.addr is required"))
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			el.Add(fmt.Errorf("storage: sqlite_path is required"))
		}
	}

	if c.AssetsPath != "" {
		if _, err := os.Stat(c.AssetsPath); err != nil {
			el.Add(fmt.Errorf("storage: invalid assets_path %q: %w", c.AssetsPath, err))
		}
	}

	return el.Err()
}

func (c *StorageConfig) buildStore(ctx context.Context) (storage.Store, error) {
	switch c.Driver {
	case StorageDriverMemory:
		return storage.NewMemoryStore(), nil
	case StorageDriverRedis:
		return storage.NewRedisStore(ctx, storage.RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
	case StorageDriverSQLite:
		return storage.NewSQLiteStore(c.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage driver: %v", c.Driver)
	}
}
