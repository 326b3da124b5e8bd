package chat

import (
	"context"
	"sort"
	"strings"

	apperrors "muse-chat-api/pkg/errors"
	"muse-chat-api/pkg/logger"
)

// exhibitionFields 聚合阶段的列投影，一次 IN 查询取回全部展示所需元数据
var exhibitionFields = []string{
	"id", "e_title", "e_context", "e_poster", "e_price", "e_place", "e_date", "e_link", "e_ticketcast",
}

func (p *Pipeline) stageGenerateHyde(ctx context.Context, st *PipelineState) error {
	if p.hyde == nil {
		return apperrors.New(apperrors.CodeGenerationFailed, "hyde generator not configured")
	}

	doc, err := p.hyde.Generate(ctx, &HydeRequest{
		Query:       st.Query,
		ChatHistory: st.ChatHistory,
		ImageURLs:   st.ImageURLs,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeGenerationFailed, "hypothetical document generation failed")
	}
	if strings.TrimSpace(doc) == "" {
		return apperrors.New(apperrors.CodeGenerationFailed, "hypothetical document is empty")
	}

	st.HypotheticalDoc = doc
	return nil
}

func (p *Pipeline) stageEmbed(ctx context.Context, st *PipelineState) error {
	if p.embedder == nil {
		return apperrors.New(apperrors.CodeEmbeddingFailed, "embedder not configured")
	}

	vectors, err := p.embedder.EmbedStrings(ctx, []string{st.HypotheticalDoc})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "failed to embed hypothetical document")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return apperrors.New(apperrors.CodeEmbeddingFailed, "embedding provider returned empty vector")
	}

	embedded := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		embedded[i] = float32(v)
	}
	st.Embedding = embedded
	return nil
}

func (p *Pipeline) stageRetrieve(ctx context.Context, st *PipelineState) error {
	if p.vectors == nil {
		return apperrors.Wrap(ErrVectorDisabled, apperrors.CodeRetrievalFailed, "vector repository not configured")
	}

	results, err := p.vectors.SearchExhibitions(ctx, &VectorSearchParams{
		QueryVector: st.Embedding,
		TopK:        p.opts.TopK,
		Exact:       p.opts.ExactSearch,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "vector search failed")
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		docs = append(docs, Document{
			ID:     r.ID,
			ItemID: r.ItemID,
			Text:   r.TextContent,
			Score:  r.Score,
		})
	}
	st.Documents = docs
	return nil
}

// stageRerank 以假设文档为查询对召回文档做交叉编码重排，
// 稳定降序；空输入直接短路，不触发外部调用
func (p *Pipeline) stageRerank(ctx context.Context, st *PipelineState) error {
	if len(st.Documents) == 0 {
		st.Reranked = []ScoredDocument{}
		return nil
	}
	if p.reranker == nil {
		return apperrors.New(apperrors.CodeRerankFailed, "rerank provider not configured")
	}

	texts := make([]string, len(st.Documents))
	for i, d := range st.Documents {
		texts[i] = d.Text
	}

	results, err := p.reranker.Rerank(ctx, st.HypotheticalDoc, texts, len(texts))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRerankFailed, "rerank call failed")
	}

	reranked := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(st.Documents) {
			logger.Warn(ctx, "rerank returned out-of-range index",
				"session_id", st.SessionID,
				"index", r.Index,
				"document_count", len(st.Documents),
			)
			continue
		}
		reranked = append(reranked, ScoredDocument{
			Document:       st.Documents[r.Index],
			RelevanceScore: r.RelevanceScore,
		})
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RelevanceScore > reranked[j].RelevanceScore
	})
	st.Reranked = reranked
	return nil
}

// stageAggregate 用一次 IN 查询补齐展览元数据，内连接语义：
// 元数据缺失的条目告警后静默丢弃，保持重排后的相关度顺序
func (p *Pipeline) stageAggregate(ctx context.Context, st *PipelineState) error {
	if len(st.Reranked) == 0 {
		st.Aggregated = []RankedExhibition{}
		return nil
	}
	if p.exhibitions == nil {
		return apperrors.New(apperrors.CodeAggregationFailed, "exhibition repository not configured")
	}

	ids := make([]string, 0, len(st.Reranked))
	seen := make(map[string]struct{}, len(st.Reranked))
	for _, doc := range st.Reranked {
		id := doc.Document.ItemID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	exhibitions, err := p.exhibitions.FindByIDs(ctx, ids, exhibitionFields)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeAggregationFailed, "failed to load exhibition metadata")
	}

	byID := make(map[string]int, len(exhibitions))
	for i, e := range exhibitions {
		if e != nil {
			byID[e.ID] = i
		}
	}

	aggregated := make([]RankedExhibition, 0, len(st.Reranked))
	used := make(map[string]struct{}, len(st.Reranked))
	for _, doc := range st.Reranked {
		id := doc.Document.ItemID
		if _, ok := used[id]; ok {
			continue
		}
		used[id] = struct{}{}

		idx, ok := byID[id]
		if !ok {
			logger.Warn(ctx, "exhibition metadata missing, dropping document",
				"session_id", st.SessionID,
				"item_id", id,
			)
			continue
		}
		aggregated = append(aggregated, RankedExhibition{
			Exhibition:     exhibitions[idx],
			RelevanceScore: doc.RelevanceScore,
		})
	}
	st.Aggregated = aggregated
	return nil
}

// stageRespond 按人气稳定重排（同人气保持相关度顺序）并渲染应答
func (p *Pipeline) stageRespond(_ context.Context, st *PipelineState) error {
	if len(st.Aggregated) == 0 {
		st.Response = NoResultMessage
		return nil
	}

	sort.SliceStable(st.Aggregated, func(i, j int) bool {
		return st.Aggregated[i].Exhibition.Popularity() > st.Aggregated[j].Exhibition.Popularity()
	})

	st.Response = RenderExhibitions(st.Aggregated)
	return nil
}

func (p *Pipeline) stageRewrite(ctx context.Context, st *PipelineState) error {
	if p.rewriter == nil {
		return apperrors.New(apperrors.CodeGenerationFailed, "query rewriter not configured")
	}

	rewritten, err := p.rewriter.Rewrite(ctx, &RewriteRequest{
		Query:           st.Query,
		HypotheticalDoc: st.HypotheticalDoc,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeGenerationFailed, "query rewrite failed")
	}
	if strings.TrimSpace(rewritten) == "" {
		return apperrors.New(apperrors.CodeGenerationFailed, "rewritten query is empty")
	}

	logger.Info(ctx, "query rewritten after rejection",
		"session_id", st.SessionID,
		"cycle", st.Cycle+1,
	)
	st.Query = rewritten
	return nil
}
