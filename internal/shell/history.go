package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"finhub-workers/internal/models"
)

const historyKeyPrefix = "finhub:history:"

// RedisHistory keeps each session's conversation as a capped Redis list.
type RedisHistory struct {
	client redis.Cmdable
	limit  int
	ttl    time.Duration
}

var _ models.ConversationStore = (*RedisHistory)(nil)

func NewRedisHistory(client redis.Cmdable, limit int, ttl time.Duration) *RedisHistory {
	return &RedisHistory{client: client, limit: limit, ttl: ttl}
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

// Append pushes entry and trims the list to the newest limit entries.
func (h *RedisHistory) Append(ctx context.Context, sessionID string, entry models.ConversationEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	key := historyKey(sessionID)
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if h.limit > 0 {
			pipe.LTrim(ctx, key, int64(-h.limit), -1)
		}
		if h.ttl > 0 {
			pipe.Expire(ctx, key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (h *RedisHistory) List(ctx context.Context, sessionID string) ([]models.ConversationEntry, error) {
	raw, err := h.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	entries := make([]models.ConversationEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.ConversationEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (h *RedisHistory) Clear(ctx context.Context, sessionID string) error {
	if err := h.client.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// MemoryHistory is used when no Redis address is configured.
type MemoryHistory struct {
	mu      sync.RWMutex
	limit   int
	entries map[string][]models.ConversationEntry
}

var _ models.ConversationStore = (*MemoryHistory)(nil)

func NewMemoryHistory(limit int) *MemoryHistory {
	return &MemoryHistory{limit: limit, entries: make(map[string][]models.ConversationEntry)}
}

func (h *MemoryHistory) Append(_ context.Context, sessionID string, entry models.ConversationEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.entries[sessionID], entry)
	if h.limit > 0 && len(list) > h.limit {
		list = append([]models.ConversationEntry(nil), list[len(list)-h.limit:]...)
	}
	h.entries[sessionID] = list
	return nil
}

func (h *MemoryHistory) List(_ context.Context, sessionID string) ([]models.ConversationEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append([]models.ConversationEntry{}, h.entries[sessionID]...), nil
}

func (h *MemoryHistory) Clear(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.entries, sessionID)
	return nil
}
