// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"muse-chat-api/internal/application/chat"
)

// PendingStateStore 等待反馈的流水线状态存储，整个状态 JSON 序列化后带 TTL 落入 Redis
type PendingStateStore struct {
	client *Client
}

func NewPendingStateStore(client *Client) *PendingStateStore {
	return &PendingStateStore{client: client}
}

var _ chat.PendingStore = (*PendingStateStore)(nil)

func pendingKey(sessionID string) string {
	return "chat:pending:" + sessionID
}

func (s *PendingStateStore) Save(ctx context.Context, sessionID string, state *chat.PipelineState, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "pending.Save",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Int64("ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	payload, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}

	if err := s.client.rdb.Set(ctx, pendingKey(sessionID), payload, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save pending state: %w", err)
	}
	return nil
}

func (s *PendingStateStore) Load(ctx context.Context, sessionID string) (*chat.PipelineState, error) {
	ctx, span := cacheTracer.Start(ctx, "pending.Load",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	payload, err := s.client.rdb.Get(ctx, pendingKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load pending state: %w", err)
	}

	var state chat.PipelineState
	if err := json.Unmarshal(payload, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal pending state: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &state, nil
}

func (s *PendingStateStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := cacheTracer.Start(ctx, "pending.Delete",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	return s.client.rdb.Del(ctx, pendingKey(sessionID)).Err()
}
