package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	// RedisStore keeps each namespace in a Redis hash, with the full item
	// envelope serialized per field. Ordering is applied client-side on
	// List, so no secondary index is needed
	RedisStore struct {
		client *redis.Client
		prefix string
	}

	// RedisConfig carries connection settings for a RedisStore
	RedisConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}
)

const (
	redisSeparator     = ":"
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "synapse"
)

// NewRedisStore connects a store to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close releases the underlying Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(
	ctx context.Context, ns []string, key string,
) (*Item, error) {
	if err := ValidateRef(ns, key); err != nil {
		return nil, err
	}

	data, err := s.client.HGet(ctx, s.namespaceKey(ns), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *RedisStore) Put(
	ctx context.Context, ns []string, key string, value json.RawMessage,
) error {
	if err := ValidateRef(ns, key); err != nil {
		return err
	}

	now := time.Now().UTC()
	item := &Item{
		Namespace: slices.Clone(ns),
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := s.Get(ctx, ns, key); err == nil && existing != nil {
		item.CreatedAt = existing.CreatedAt
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.namespaceKey(ns), key, data).Err()
}

func (s *RedisStore) Delete(
	ctx context.Context, ns []string, key string,
) error {
	if err := ValidateRef(ns, key); err != nil {
		return err
	}
	return s.client.HDel(ctx, s.namespaceKey(ns), key).Err()
}

func (s *RedisStore) List(
	ctx context.Context, ns []string,
) ([]*Item, error) {
	if len(ns) == 0 {
		return nil, ErrEmptyNamespace
	}

	fields, err := s.client.HGetAll(ctx, s.namespaceKey(ns)).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(fields))
	for _, data := range fields {
		var item Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	slices.SortFunc(items, func(a, b *Item) int {
		return strings.Compare(a.Key, b.Key)
	})
	return items, nil
}

func (s *RedisStore) namespaceKey(ns []string) string {
	return s.prefix + redisSeparator + joinNamespace(ns, redisSeparator)
}
