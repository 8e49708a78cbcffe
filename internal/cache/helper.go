package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"booking/internal/models"
	"booking/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	countsKeyPrefix = "requests:counts:%s"
	// CountsTTL bounds how stale the status-count report may be.
	CountsTTL = 30 * time.Second
)

// CountsKey is the cache key of the status counts for an organization ("" = all).
func CountsKey(org models.Organization) string {
	if org == "" {
		return fmt.Sprintf(countsKeyPrefix, "all")
	}
	return fmt.Sprintf(countsKeyPrefix, org)
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first and on a miss calls fetch, which must populate dest,
// then stores dest with ttl. Redis failures degrade to calling fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func(context.Context) error) error {
	found, err := GetJSON(ctx, key, dest)
	if err == nil && found {
		observability.CacheLookups.WithLabelValues("aside", "hit").Inc()
		return nil
	}
	if err != nil {
		observability.CacheLookups.WithLabelValues("aside", "error").Inc()
	} else {
		observability.CacheLookups.WithLabelValues("aside", "miss").Inc()
	}

	if err := fetch(ctx); err != nil {
		return err
	}

	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate removes keys, ignoring a missing client.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateCounts drops the cached status counts for org and the all-org total.
func InvalidateCounts(ctx context.Context, org models.Organization) {
	Invalidate(ctx, CountsKey(org), CountsKey(""))
}
