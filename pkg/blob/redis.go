package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores the object under a single key
type Redis struct {
	rdb redis.UniversalClient
	key string
}

// NewRedis creates a blob for key
func NewRedis(rdb redis.UniversalClient, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

func (r *Redis) Read(ctx context.Context) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get redis key %s: %w", r.key, err)
	}
	return data, nil
}

func (r *Redis) Write(ctx context.Context, data []byte) error {
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set redis key %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) ReadVersion(ctx context.Context) ([]byte, Version, error) {
	data, err := r.Read(ctx)
	if err != nil {
		return nil, "", err
	}
	return data, versionOf(data), nil
}

// WriteIf sets the key inside a WATCH/MULTI transaction so a concurrent
// writer aborts it
func (r *Redis) WriteIf(ctx context.Context, data []byte, v Version) (Version, error) {
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var cur Version
		existing, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case err == nil:
			cur = versionOf(existing)
		case !errors.Is(err, redis.Nil):
			return err
		}
		if cur != v {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}, r.key)

	switch {
	case err == nil:
		return versionOf(data), nil
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return "", ErrConflict
	}
	return "", fmt.Errorf("failed to set redis key %s: %w", r.key, err)
}
