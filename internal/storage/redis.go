package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values, sets and hashes in a redis server. Sequences are
// redis counters and indexes are hashes keyed by index name.
type RedisStore struct {
	client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting %s: %w", key, err)
	}
	return b, true, nil
}

func (s *RedisStore) SetValue(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) DeleteValue(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) AddToSet(ctx context.Context, setKey string, member string) error {
	return s.client.SAdd(ctx, setKey, member).Err()
}

func (s *RedisStore) RemoveFromSet(ctx context.Context, setKey string, member string) error {
	return s.client.SRem(ctx, setKey, member).Err()
}

func (s *RedisStore) SetContains(ctx context.Context, setKey string, member string) (bool, error) {
	return s.client.SIsMember(ctx, setKey, member).Result()
}

func (s *RedisStore) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reading set %s: %w", setKey, err)
	}
	slices.Sort(members)
	return members, nil
}

func (s *RedisStore) HashGet(ctx context.Context, hashKey string, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, hashKey, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading hash %s: %w", hashKey, err)
	}
	return v, true, nil
}

func (s *RedisStore) HashSet(ctx context.Context, hashKey string, field string, value string) error {
	return s.client.HSet(ctx, hashKey, field, value).Err()
}

func (s *RedisStore) HashGetAll(ctx context.Context, hashKey string) (map[string]string, error) {
	return s.client.HGetAll(ctx, hashKey).Result()
}

func (s *RedisStore) HashDelete(ctx context.Context, hashKey string, field string) error {
	return s.client.HDel(ctx, hashKey, field).Err()
}

func (s *RedisStore) NextValue(ctx context.Context, sequence string) (int64, error) {
	return s.client.Incr(ctx, sequence).Result()
}

func (s *RedisStore) SetIndex(ctx context.Context, index string, value string, target string) error {
	return s.HashSet(ctx, index, value, target)
}

func (s *RedisStore) GetIndex(ctx context.Context, index string, value string) (string, bool, error) {
	return s.HashGet(ctx, index, value)
}

func (s *RedisStore) DeleteIndex(ctx context.Context, index string, value string) error {
	return s.HashDelete(ctx, index, value)
}

func (s *RedisStore) DeleteKey(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
