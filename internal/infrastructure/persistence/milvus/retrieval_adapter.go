package milvus

import (
	"context"

	"muse-chat-api/internal/application/chat"
)

// ChatVectorRepository 把 Milvus 仓储适配成流水线的向量库端口
type ChatVectorRepository struct {
	repo *Repository
}

func NewChatVectorRepository(repo *Repository) *ChatVectorRepository {
	return &ChatVectorRepository{repo: repo}
}

var _ chat.VectorRepository = (*ChatVectorRepository)(nil)

func (r *ChatVectorRepository) EnsureExhibitionVectorsCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return chat.ErrVectorDisabled
	}
	return r.repo.EnsureExhibitionVectorsCollection(ctx)
}

func (r *ChatVectorRepository) SearchExhibitions(ctx context.Context, params *chat.VectorSearchParams) ([]*chat.VectorSearchResult, error) {
	if r == nil || r.repo == nil {
		return nil, chat.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := r.repo.SearchExhibitions(ctx, &SearchParams{
		QueryVector: params.QueryVector,
		TopK:        params.TopK,
		Exact:       params.Exact,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*chat.VectorSearchResult, 0, len(out))
	for i := range out {
		v := out[i]
		if v == nil {
			continue
		}
		results = append(results, &chat.VectorSearchResult{
			ID:          v.ID,
			ItemID:      v.ItemID,
			TextContent: v.TextContent,
			Score:       v.Score,
		})
	}
	return results, nil
}
