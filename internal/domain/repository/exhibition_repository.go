// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"muse-chat-api/internal/domain/entity"
)

// ExhibitionRepository 展览元数据访问接口
type ExhibitionRepository interface {
	// FindByIDs 按 ID 集合批量查询，fields 为空时返回全部列；
	// 缺失的 ID 静默跳过，返回顺序不保证
	FindByIDs(ctx context.Context, ids []string, fields []string) ([]*entity.Exhibition, error)
	GetByID(ctx context.Context, id string) (*entity.Exhibition, error)
	Upsert(ctx context.Context, exhibitions []*entity.Exhibition) error
}

// MusicalRepository 音乐剧目录访问接口
type MusicalRepository interface {
	ListAll(ctx context.Context) ([]*entity.Musical, error)
	// ListActive 返回 endDate（YYYY.MM.DD）不早于给定日期的剧目
	ListActive(ctx context.Context, date string) ([]*entity.Musical, error)
}
