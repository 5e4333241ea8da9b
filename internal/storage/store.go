package storage

import (
	"context"
)

// Store is the key/value backing store persistent objects are kept in. Values
// are opaque JSON documents; sets, hashes, sequences and indexes are the
// auxiliary structures the object layer builds its bookkeeping from.
type Store interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	SetValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error

	AddToSet(ctx context.Context, setKey string, member string) error
	RemoveFromSet(ctx context.Context, setKey string, member string) error
	SetContains(ctx context.Context, setKey string, member string) (bool, error)
	SetMembers(ctx context.Context, setKey string) ([]string, error)

	HashGet(ctx context.Context, hashKey string, field string) (string, bool, error)
	HashSet(ctx context.Context, hashKey string, field string, value string) error
	HashGetAll(ctx context.Context, hashKey string) (map[string]string, error)
	HashDelete(ctx context.Context, hashKey string, field string) error

	// NextValue returns the next value of a monotonically increasing sequence,
	// starting at 1.
	NextValue(ctx context.Context, sequence string) (int64, error)

	SetIndex(ctx context.Context, index string, value string, target string) error
	GetIndex(ctx context.Context, index string, value string) (string, bool, error)
	DeleteIndex(ctx context.Context, index string, value string) error

	// DeleteKey removes whatever structure is stored under key.
	DeleteKey(ctx context.Context, key string) error

	Close() error
}
