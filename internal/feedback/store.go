package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps feedback in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, f Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, f)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Feedback, len(m.items))
	copy(out, m.items)
	return out, nil
}

// RedisStore keeps feedback as JSON documents in a redis list.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Append(ctx context.Context, f Feedback) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	return r.client.RPush(ctx, r.key, data).Err()
}

func (r *RedisStore) List(ctx context.Context) ([]Feedback, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Feedback, 0, len(raw))
	for i, doc := range raw {
		var f Feedback
		if err := json.Unmarshal([]byte(doc), &f); err != nil {
			return nil, fmt.Errorf("decode feedback %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// HealthCheck pings redis.
func (r *RedisStore) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
