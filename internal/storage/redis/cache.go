// Package redis caches computed sheets in Redis, keyed by document
// fingerprint.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/d20sheet/internal/config"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
)

// ErrCacheMiss is returned by Get when no entry exists for the key.
var ErrCacheMiss = errors.New("sheet cache miss")

const keyPrefix = "sheet:"

// SheetCache implements engine.SheetCache.
type SheetCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewSheetCache creates a SheetCache on client. A ttl of 0 keeps entries
// until evicted.
//
// Precondition: client must be non-nil.
func NewSheetCache(client goredis.Cmdable, ttl time.Duration) *SheetCache {
	if client == nil {
		panic("redis.NewSheetCache: client must not be nil")
	}
	return &SheetCache{client: client, ttl: ttl}
}

// NewClient opens a client from cfg and pings it.
//
// Postcondition: Returns a reachable client or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Get returns the cached result for key. The result has no Sheet.
//
// Postcondition: Returns ErrCacheMiss if key is absent.
func (c *SheetCache) Get(ctx context.Context, key string) (*engine.Result, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("getting cached sheet: %w", err)
	}
	var res engine.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding cached sheet: %w", err)
	}
	return &res, nil
}

// Set stores r under key.
//
// Precondition: r must be non-nil.
func (c *SheetCache) Set(ctx context.Context, key string, r *engine.Result) error {
	if r == nil {
		return errors.New("result cannot be nil")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding sheet: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("caching sheet: %w", err)
	}
	return nil
}

// Invalidate drops every cached entry for characterID.
func (c *SheetCache) Invalidate(ctx context.Context, characterID string) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+characterID+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cached sheets: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting cached sheets: %w", err)
	}
	return nil
}
