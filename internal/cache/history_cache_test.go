package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rpattn/enghistory/pkg/history"
)

func TestKeyIgnoresFieldOrderAndDuplicates(t *testing.T) {
	id := uuid.New()

	a := Key(id, 4, []string{"b", "a"})
	b := Key(id, 4, []string{"a", "b", "a"})
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "history:"+id.String()+":4:") {
		t.Fatalf("unexpected key layout %q", a)
	}
	if Key(id, 5, []string{"a", "b"}) == a {
		t.Fatalf("expected a new version to change the key")
	}
	if Key(id, 4, nil) == a {
		t.Fatalf("expected ignored fields to change the key")
	}
}

func TestDecodeRecord(t *testing.T) {
	record, err := decodeRecord([]byte(`{"id":"x","historyEntry":{"name":[{"updatedAt":"t1","value":"b"}]}}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if record == nil || record.ID != "x" || len(record.HistoryEntry["name"].Changes) != 1 {
		t.Fatalf("unexpected record %+v", record)
	}

	empty, err := decodeRecord([]byte(`null`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil record for cached empty history, got %+v", empty)
	}
}

func TestNoopCache(t *testing.T) {
	c := NewNoopCache()
	ctx := context.Background()
	if err := c.Set(ctx, "k", &history.Record{ID: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss from noop cache, got ok=%v err=%v", ok, err)
	}
}

type setCall struct {
	value []byte
	ttl   time.Duration
}

// stubRedis serves Get and Set from memory; other commands are not used by the cache.
type stubRedis struct {
	redis.Cmdable
	values map[string][]byte
	sets   map[string]setCall
	getErr error
}

func newStubRedis() *stubRedis {
	return &stubRedis{values: map[string][]byte{}, sets: map[string]setCall{}}
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	value, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(value), nil)
}

func (s *stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	payload, _ := value.([]byte)
	s.values[key] = payload
	s.sets[key] = setCall{value: payload, ttl: expiration}
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client := newStubRedis()
	c := NewRedisCache(client, 10*time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "history:a"); ok || err != nil {
		t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
	}

	record := &history.Record{ID: "x", HistoryEntry: history.Entry{
		"name": {Changes: []history.ChangePoint{{UpdatedAt: "t1", Value: "b"}}},
	}}
	if err := c.Set(ctx, "history:a", record); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if got := client.sets["history:a"].ttl; got != 10*time.Minute {
		t.Fatalf("expected ttl of 10m, got %s", got)
	}

	cached, ok, err := c.Get(ctx, "history:a")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if cached.ID != "x" || cached.HistoryEntry["name"].Changes[0].Value != "b" {
		t.Fatalf("unexpected cached record %+v", cached)
	}
}

func TestRedisCacheStoresEmptyHistory(t *testing.T) {
	client := newStubRedis()
	c := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "history:b", nil); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if string(client.sets["history:b"].value) != "null" {
		t.Fatalf("expected null payload, got %q", client.sets["history:b"].value)
	}

	record, ok, err := c.Get(ctx, "history:b")
	if err != nil || !ok || record != nil {
		t.Fatalf("expected cached empty history, got record=%+v ok=%v err=%v", record, ok, err)
	}
}

func TestRedisCacheReadFailure(t *testing.T) {
	client := newStubRedis()
	client.getErr = errors.New("connection refused")

	_, ok, err := NewRedisCache(client, time.Minute).Get(context.Background(), "history:c")
	if ok || err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped read error, got ok=%v err=%v", ok, err)
	}
}
