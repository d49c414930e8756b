package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/tendant/stash/pkg/stash/blob"
)

// DefaultPrefix namespaces blob hashes in a shared Redis database
const DefaultPrefix = "stash:blob:"

const (
	fieldData        = "data"
	fieldContentType = "content_type"
)

// Backend keeps each blob in a Redis hash holding the bytes and content type
type Backend struct {
	client *redis.Client
	prefix string
}

// New creates a Redis-backed blob store. An empty prefix means DefaultPrefix.
func New(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

// Name implements blob.Backend
func (b *Backend) Name() string {
	return "redis"
}

func (b *Backend) key(key string) string {
	return b.prefix + key
}

// Put stores data under key, replacing any previous value
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := b.client.HSet(ctx, b.key(key), fieldData, data, fieldContentType, contentType).Err()
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Get returns the stored bytes
func (b *Backend) Get(ctx context.Context, key string) (any, error) {
	data, err := b.client.HGet(ctx, b.key(key), fieldData).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, blob.ErrObjectNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// ContentType returns the content type recorded at upload
func (b *Backend) ContentType(ctx context.Context, key string) (string, error) {
	ct, err := b.client.HGet(ctx, b.key(key), fieldContentType).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", blob.ErrObjectNotFound
		}
		return "", err
	}
	return ct, nil
}

// Delete removes key
func (b *Backend) Delete(ctx context.Context, key string) error {
	n, err := b.client.Del(ctx, b.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	if n == 0 {
		return blob.ErrObjectNotFound
	}
	return nil
}
