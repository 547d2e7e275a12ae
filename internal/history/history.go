// Package history is the Message Cache: a Redis-backed, per-thread
// recent-message window sitting in front of the authoritative
// internal/store.Messages backend. It follows the cold-load contract
// internal/sessions.Store already uses (GetHistory falls through to
// the backing store on a miss) and the TTL/bound idiom of
// internal/cache.DedupeCache (fixed cap, sliding TTL refreshed on
// write).
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haasonsaas/nexus-core/internal/store"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

const (
	// maxCachedMessages bounds the cached window per thread. Older
	// entries are trimmed off the head on every append.
	maxCachedMessages = 200

	// defaultTTL is used when Options.TTL is zero.
	defaultTTL = time.Hour
)

// Options configures a Cache.
type Options struct {
	// TTL is the expiry applied to a thread's history key on every
	// write. Defaults to defaultTTL (overridable via
	// REDIS_HISTORY_TTL_SECONDS at the config layer).
	TTL time.Duration
}

// Cache is the Message Cache. It is safe for concurrent use; all
// mutation goes through Redis's own atomicity, not a local mutex.
type Cache struct {
	rdb     *redis.Client
	backing store.Messages
	ttl     time.Duration
}

// New creates a Cache backed by rdb, cold-loading from backing on a
// miss.
func New(rdb *redis.Client, backing store.Messages, opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{rdb: rdb, backing: backing, ttl: ttl}
}

func key(threadID string) string {
	return fmt.Sprintf("thread:%s:history", threadID)
}

// Get returns up to limit messages for the thread, oldest first. On a
// cache miss it cold-loads from the backing store and repopulates the
// cache before returning.
func (c *Cache) Get(ctx context.Context, threadID string, limit int) ([]*models.Message, error) {
	k := key(threadID)
	raw, err := c.rdb.LRange(ctx, k, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("history: LRANGE %s: %w", k, err)
	}

	var msgs []*models.Message
	if len(raw) > 0 {
		msgs = make([]*models.Message, 0, len(raw))
		for _, item := range raw {
			var m models.Message
			if err := json.Unmarshal([]byte(item), &m); err != nil {
				return nil, fmt.Errorf("history: decode cached message: %w", err)
			}
			msgs = append(msgs, &m)
		}
	} else {
		msgs, err = c.backing.GetMessages(ctx, threadID, maxCachedMessages)
		if err != nil {
			return nil, fmt.Errorf("history: cold load %s: %w", threadID, err)
		}
		if len(msgs) > 0 {
			if err := c.refill(ctx, threadID, msgs); err != nil {
				return nil, err
			}
		}
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Append adds a message to the thread's cached history, trimming to
// maxCachedMessages and refreshing the TTL, then persists it to the
// backing store. The backing write happens first so the cache never
// holds a message the authoritative store doesn't have.
func (c *Cache) Append(ctx context.Context, threadID string, msg *models.Message) error {
	if err := c.backing.AppendMessage(ctx, threadID, msg); err != nil {
		return fmt.Errorf("history: append to backing store: %w", err)
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("history: encode message: %w", err)
	}

	k := key(threadID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, k, encoded)
	pipe.LTrim(ctx, k, -maxCachedMessages, -1)
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history: pipeline append %s: %w", k, err)
	}
	return nil
}

// Invalidate drops the cached window for a thread, forcing the next
// Get to cold-load from the backing store.
func (c *Cache) Invalidate(ctx context.Context, threadID string) error {
	if err := c.rdb.Del(ctx, key(threadID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("history: DEL %s: %w", key(threadID), err)
	}
	return nil
}

func (c *Cache) refill(ctx context.Context, threadID string, msgs []*models.Message) error {
	if len(msgs) > maxCachedMessages {
		msgs = msgs[len(msgs)-maxCachedMessages:]
	}
	encoded := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("history: encode message during refill: %w", err)
		}
		encoded = append(encoded, b)
	}

	k := key(threadID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, k)
	pipe.RPush(ctx, k, encoded...)
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history: pipeline refill %s: %w", k, err)
	}
	return nil
}
