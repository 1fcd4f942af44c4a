package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage is the durable key-value port the draft is persisted through.
// The full draft is written as one JSON record under a namespaced key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// ErrNoRecord is returned by Storage.Get when the key holds nothing.
var ErrNoRecord = errors.New("cart: no stored record")

const keyPrefix = "mesa:cart:"

// Drafts should outlive any realistic table session but not pile up forever.
const draftTTL = 30 * 24 * time.Hour

func draftKey(session string) string { return keyPrefix + session }

// RedisStorage persists drafts in Redis.
type RedisStorage struct {
	redis *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{redis: client}
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	return s.redis.Set(ctx, key, value, draftTTL).Err()
}

func (s *RedisStorage) Del(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key).Err()
}

// MemoryStorage is an in-process Storage for tests and offline use.
type MemoryStorage struct {
	records map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.records[key]
	if !ok {
		return nil, ErrNoRecord
	}
	return v, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	s.records[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Del(_ context.Context, key string) error {
	delete(s.records, key)
	return nil
}

// decodeDraftOrEmpty restores a persisted draft, failing open: a missing,
// truncated, or otherwise malformed record yields an empty draft, never an
// error. Contrast with order.AllowedNextStates, which fails closed; local
// draft state has no security consequence, permitted mutations do.
func decodeDraftOrEmpty(raw []byte) Draft {
	if len(raw) == 0 {
		return Draft{}
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}
	}
	// Drop lines a buggy or stale writer may have left in an invalid shape.
	kept := d.Lines[:0]
	for _, l := range d.Lines {
		if l.Quantity >= 1 && l.ID > 0 && (l.Kind == KindProduct || l.Kind == KindPromotion) {
			kept = append(kept, l)
		}
	}
	d.Lines = kept
	return d
}
