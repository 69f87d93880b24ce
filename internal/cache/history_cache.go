package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rpattn/enghistory/pkg/history"
)

// HistoryCache stores computed history records. A cached nil record means the
// entity had no history at that version.
type HistoryCache interface {
	Get(ctx context.Context, key string) (*history.Record, bool, error)
	Set(ctx context.Context, key string, record *history.Record) error
}

// Key identifies a computed record. Versions only grow, so a new version yields a new key.
func Key(entityID uuid.UUID, version int64, ignoredFields []string) string {
	ignored := slices.Clone(ignoredFields)
	slices.Sort(ignored)
	ignored = slices.Compact(ignored)

	sum := sha256.Sum256([]byte(strings.Join(ignored, "\x00")))
	return fmt.Sprintf("history:%s:%d:%s", entityID, version, hex.EncodeToString(sum[:8]))
}

type redisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache caches records in redis with the given TTL.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) HistoryCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) (*history.Record, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached history: %w", err)
	}

	record, err := decodeRecord(payload)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, record *history.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache history: %w", err)
	}
	return nil
}

func decodeRecord(payload []byte) (*history.Record, error) {
	var record *history.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode cached history: %w", err)
	}
	return record, nil
}

type noopCache struct{}

// NewNoopCache returns a cache that never stores anything.
func NewNoopCache() HistoryCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (*history.Record, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(context.Context, string, *history.Record) error {
	return nil
}
