// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"muse-chat-api/internal/domain/entity"
)

// ExhibitionRepository 展览元数据仓储
type ExhibitionRepository struct {
	client *Client
}

func NewExhibitionRepository(client *Client) *ExhibitionRepository {
	return &ExhibitionRepository{client: client}
}

// FindByIDs 按 ID 集合批量查询，一次 IN 查询完成；缺失的 ID 静默跳过
func (r *ExhibitionRepository) FindByIDs(ctx context.Context, ids []string, fields []string) ([]*entity.Exhibition, error) {
	ctx, span := tracer.Start(ctx, "postgres.ExhibitionRepository.FindByIDs")
	span.SetAttributes(attribute.Int("exhibition.id_count", len(ids)))
	defer span.End()

	if len(ids) == 0 {
		return []*entity.Exhibition{}, nil
	}

	db := getDB(ctx, r.client.db).Model(&entity.Exhibition{})
	if len(fields) > 0 {
		db = db.Select(fields)
	}

	var exhibitions []*entity.Exhibition
	if err := db.Where("id IN ?", ids).Find(&exhibitions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find exhibitions by ids: %w", err)
	}
	return exhibitions, nil
}

func (r *ExhibitionRepository) GetByID(ctx context.Context, id string) (*entity.Exhibition, error) {
	ctx, span := tracer.Start(ctx, "postgres.ExhibitionRepository.GetByID")
	defer span.End()

	var exhibition entity.Exhibition
	err := getDB(ctx, r.client.db).Where("id = ?", id).First(&exhibition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get exhibition: %w", err)
	}
	return &exhibition, nil
}

// Upsert 批量写入展览元数据，冲突时整行覆盖（采集任务用）
func (r *ExhibitionRepository) Upsert(ctx context.Context, exhibitions []*entity.Exhibition) error {
	ctx, span := tracer.Start(ctx, "postgres.ExhibitionRepository.Upsert")
	span.SetAttributes(attribute.Int("exhibition.count", len(exhibitions)))
	defer span.End()

	if len(exhibitions) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&exhibitions).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert exhibitions: %w", err)
	}
	return nil
}
