// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"muse-chat-api/internal/domain/entity"
)

// MusicalRepository 音乐剧目录仓储
type MusicalRepository struct {
	client *Client
}

func NewMusicalRepository(client *Client) *MusicalRepository {
	return &MusicalRepository{client: client}
}

func (r *MusicalRepository) ListAll(ctx context.Context) ([]*entity.Musical, error) {
	ctx, span := tracer.Start(ctx, "postgres.MusicalRepository.ListAll")
	defer span.End()

	var musicals []*entity.Musical
	if err := getDB(ctx, r.client.db).Order("title ASC").Find(&musicals).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list musicals: %w", err)
	}
	span.SetAttributes(attribute.Int("musical.count", len(musicals)))
	return musicals, nil
}

// ListActive 返回尚未下档的剧目，end_date 为 YYYY.MM.DD 字符串，可直接字典序比较
func (r *MusicalRepository) ListActive(ctx context.Context, date string) ([]*entity.Musical, error) {
	ctx, span := tracer.Start(ctx, "postgres.MusicalRepository.ListActive")
	span.SetAttributes(attribute.String("musical.cutoff_date", date))
	defer span.End()

	var musicals []*entity.Musical
	err := getDB(ctx, r.client.db).
		Where("end_date >= ?", date).
		Order("title ASC").
		Find(&musicals).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list active musicals: %w", err)
	}
	span.SetAttributes(attribute.Int("musical.count", len(musicals)))
	return musicals, nil
}
