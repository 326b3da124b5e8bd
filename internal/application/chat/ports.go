// Package chat 实现对话检索流水线：
// 假设文档生成 -> 向量化 -> 向量检索 -> 交叉编码重排 -> 元数据聚合 -> 人气重排与应答，
// 以及等待用户反馈后的查询改写循环。
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrVectorDisabled 向量检索未配置（部署裁剪场景）
var ErrVectorDisabled = errors.New("vector repository disabled")

// VectorSearchParams 向量检索参数
type VectorSearchParams struct {
	QueryVector []float32
	TopK        int
	Exact       bool
}

// VectorSearchResult 向量检索结果
type VectorSearchResult struct {
	ID          string
	ItemID      string
	TextContent string
	Score       float32
}

// VectorRepository 向量库端口
type VectorRepository interface {
	EnsureExhibitionVectorsCollection(ctx context.Context) error
	SearchExhibitions(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
}

// RerankResult 重排结果，Index 指向输入文档下标
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RerankProvider 交叉编码重排端口
type RerankProvider interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// HydeRequest 假设文档生成请求
type HydeRequest struct {
	Query       string
	ChatHistory string
	ImageURLs   []string
}

// HydeGenerator 假设文档生成端口
type HydeGenerator interface {
	Generate(ctx context.Context, req *HydeRequest) (string, error)
}

// RewriteRequest 查询改写请求
type RewriteRequest struct {
	Query           string
	HypotheticalDoc string
}

// QueryRewriter 查询改写端口
type QueryRewriter interface {
	Rewrite(ctx context.Context, req *RewriteRequest) (string, error)
}

// PendingStore 等待反馈状态存储端口
type PendingStore interface {
	Save(ctx context.Context, sessionID string, state *PipelineState, ttl time.Duration) error
	// Load 不存在时返回 (nil, nil)
	Load(ctx context.Context, sessionID string) (*PipelineState, error)
	Delete(ctx context.Context, sessionID string) error
}
