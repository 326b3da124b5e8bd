// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"muse-chat-api/pkg/metrics"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	TopK        int
	// Exact 为 true 时走暴力精确检索（FLAT search param），否则走 HNSW 近似检索
	Exact bool
}

// SearchResult 检索结果
type SearchResult struct {
	ID          string
	ItemID      string
	TextContent string
	Score       float32
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// SearchExhibitions 检索展览文档
// 集合不存在时返回空结果而非报错，方便冷启动环境
func (r *Repository) SearchExhibitions(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchExhibitions",
		trace.WithAttributes(
			attribute.Int("top_k", params.TopK),
			attribute.Bool("exact", params.Exact),
		))
	defer span.End()

	start := time.Now()

	has, err := r.client.HasCollection(ctx, CollectionExhibitionVectors)
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionExhibitionVectors, "error").Inc()
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return []*SearchResult{}, nil
	}

	collName := r.client.CollectionName(CollectionExhibitionVectors)

	// 精确检索走暴力扫描，近似检索走 HNSW
	var sp entity.SearchParam
	if params.Exact {
		sp, err = entity.NewIndexFlatSearchParam()
	} else {
		sp, err = entity.NewIndexHNSWSearchParam(128)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		"",
		[]string{"id", "item_id", "text_content"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionExhibitionVectors, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if itemCol, ok := result.Fields.GetColumn("item_id").(*entity.ColumnVarChar); ok {
				sr.ItemID = itemCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn("text_content").(*entity.ColumnVarChar); ok {
				sr.TextContent = textCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	metrics.MilvusSearchTotal.WithLabelValues(CollectionExhibitionVectors, "success").Inc()
	metrics.MilvusSearchDuration.WithLabelValues(CollectionExhibitionVectors).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertExhibitions 插入展览向量（采集任务用）
func (r *Repository) InsertExhibitions(ctx context.Context, vectors []*ExhibitionVector) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertExhibitions",
		trace.WithAttributes(attribute.Int("count", len(vectors))))
	defer span.End()

	if len(vectors) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionExhibitionVectors)

	ids := make([]string, len(vectors))
	embeds := make([][]float32, len(vectors))
	itemIDs := make([]string, len(vectors))
	texts := make([]string, len(vectors))

	for i, v := range vectors {
		ids[i] = v.ID
		embeds[i] = v.Vector
		itemIDs[i] = v.ItemID
		texts[i] = v.TextContent
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, embeds)
	itemCol := entity.NewColumnVarChar("item_id", itemIDs)
	textCol := entity.NewColumnVarChar("text_content", texts)

	_, err := r.client.milvus.Insert(ctx, collName, "", idCol, vectorCol, itemCol, textCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert exhibition vectors: %w", err)
	}

	return nil
}

// DeleteByItemIDs 删除指定展览的向量（重新采集前清理）
func (r *Repository) DeleteByItemIDs(ctx context.Context, itemIDs []string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	if len(itemIDs) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByItemIDs",
		trace.WithAttributes(attribute.Int("count", len(itemIDs))))
	defer span.End()

	collName := r.client.CollectionName(CollectionExhibitionVectors)

	filter := "item_id in ["
	for i, id := range itemIDs {
		if i > 0 {
			filter += ", "
		}
		filter += fmt.Sprintf("%q", id)
	}
	filter += "]"

	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete exhibition vectors: %w", err)
	}
	return nil
}

// EnsureExhibitionVectorsCollection 确保集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureExhibitionVectorsCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionExhibitionVectors)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, ExhibitionVectorsSchema()); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionExhibitionVectors)
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionExhibitionVectors)
}
