// Package history keeps a durable copy of every session's turns outside the
// process so a transcript survives restarts and eviction.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-chatbot-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

// Archive stores turns per session, oldest first.
type Archive interface {
	Append(ctx context.Context, sessionID string, turns ...store.Turn) error

	// Load returns the newest limit turns, or all when limit <= 0
	Load(ctx context.Context, sessionID string, limit int) ([]store.Turn, error)

	Clear(ctx context.Context, sessionID string) error
}

// RedisArchive keeps each session as a Redis list of JSON turns.
type RedisArchive struct {
	rdb      *redis.Client
	prefix   string
	maxTurns int64
	ttl      time.Duration
}

var _ Archive = &RedisArchive{}

// NewRedisArchive caps each list at maxTurns (0 keeps everything) and expires
// idle transcripts after ttl (0 never expires).
func NewRedisArchive(rdb *redis.Client, maxTurns int64, ttl time.Duration) *RedisArchive {
	return &RedisArchive{
		rdb:      rdb,
		prefix:   "chatbot:history:",
		maxTurns: maxTurns,
		ttl:      ttl,
	}
}

func (a *RedisArchive) key(sessionID string) string {
	return a.prefix + sessionID
}

func (a *RedisArchive) Append(ctx context.Context, sessionID string, turns ...store.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, data)
	}

	key := a.key(sessionID)
	pipe := a.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if a.maxTurns > 0 {
		pipe.LTrim(ctx, key, -a.maxTurns, -1)
	}
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive turns for %s: %w", sessionID, err)
	}
	return nil
}

func (a *RedisArchive) Load(ctx context.Context, sessionID string, limit int) ([]store.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raw, err := a.rdb.LRange(ctx, a.key(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", sessionID, err)
	}

	turns := make([]store.Turn, 0, len(raw))
	for _, r := range raw {
		var t store.Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (a *RedisArchive) Clear(ctx context.Context, sessionID string) error {
	if err := a.rdb.Del(ctx, a.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear history for %s: %w", sessionID, err)
	}
	return nil
}

// NopArchive is used when Redis is not configured.
type NopArchive struct{}

func (NopArchive) Append(ctx context.Context, sessionID string, turns ...store.Turn) error {
	return nil
}

func (NopArchive) Load(ctx context.Context, sessionID string, limit int) ([]store.Turn, error) {
	return nil, nil
}

func (NopArchive) Clear(ctx context.Context, sessionID string) error {
	return nil
}
