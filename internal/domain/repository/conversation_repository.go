// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"muse-chat-api/internal/domain/entity"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	GetByID(ctx context.Context, id string) (*entity.ChatSession, error)
	Update(ctx context.Context, session *entity.ChatSession) error
}

type ChatTurnRepository interface {
	Create(ctx context.Context, turn *entity.ChatTurn) error
	// ListBySession 按创建时间升序返回会话历史
	ListBySession(ctx context.Context, sessionID string, pagination Pagination) (*PagedResult[*entity.ChatTurn], error)
	// Recent 返回最近 limit 轮，升序排列，供提示词注入
	Recent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error)
}
