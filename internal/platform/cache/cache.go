// Package cache is a read-through entity cache keyed by tenant, entity type
// and id. Writers invalidate keys explicitly; cache failures never fail a
// request, they only cost a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) error
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Key builds the cache key for one entity of one tenant.
func Key(tenantID uuid.UUID, entity string, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, entity, id)
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Cache read and write errors fall through to load.
//
// The write is not fenced against Invalidate: a load that started before a
// concurrent invalidation can still Set the value it read, which then
// stays visible until ttl expires. Keep ttl short for mutable records.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	if c != nil {
		var v T
		if err := c.Get(ctx, key, &v); err == nil {
			return &v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if c != nil {
		_ = c.Set(ctx, key, v, ttl)
	}
	return v, nil
}

// Invalidate deletes keys, ignoring a nil cache.
func Invalidate(ctx context.Context, c Cache, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.Delete(ctx, keys...)
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	return data, nil
}
