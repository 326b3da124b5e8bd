// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"muse-chat-api/internal/domain/entity"
	"muse-chat-api/internal/domain/repository"
)

type ChatTurnRepository struct {
	client *Client
}

func NewChatTurnRepository(client *Client) *ChatTurnRepository {
	return &ChatTurnRepository{client: client}
}

func (r *ChatTurnRepository) Create(ctx context.Context, turn *entity.ChatTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat turn: %w", err)
	}
	return nil
}

func (r *ChatTurnRepository) ListBySession(ctx context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatTurn], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.ListBySession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ChatTurn{}).Where("session_id = ?", sessionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat turns: %w", err)
	}

	var turns []*entity.ChatTurn
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}

	return repository.NewPagedResult(turns, total, pagination), nil
}

// Recent 返回最近 limit 轮并恢复为升序，供提示词注入
func (r *ChatTurnRepository) Recent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatTurnRepository.Recent")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	db := getDB(ctx, r.client.db)
	var turns []*entity.ChatTurn
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load recent chat turns: %w", err)
	}

	// 倒序查询结果翻回升序
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
