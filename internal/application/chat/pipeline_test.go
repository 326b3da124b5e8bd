package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-chat-api/internal/domain/entity"
	apperrors "muse-chat-api/pkg/errors"
)

type fakeHyde struct {
	doc   string
	err   error
	calls int
}

func (f *fakeHyde) Generate(_ context.Context, req *HydeRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.doc != "" {
		return f.doc, nil
	}
	return "hypothetical: " + req.Query, nil
}

type fakeRewriter struct {
	rewritten string
	err       error
	calls     int
}

func (f *fakeRewriter) Rewrite(_ context.Context, req *RewriteRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.rewritten != "" {
		return f.rewritten, nil
	}
	return "rewritten: " + req.Query, nil
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeVectors struct {
	results []*VectorSearchResult
	err     error
	params  *VectorSearchParams
}

func (f *fakeVectors) EnsureExhibitionVectorsCollection(context.Context) error { return nil }

func (f *fakeVectors) SearchExhibitions(_ context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeReranker struct {
	results []RerankResult
	err     error
	query   string
	docs    []string
}

func (f *fakeReranker) Rerank(_ context.Context, query string, documents []string, _ int) ([]RerankResult, error) {
	f.query = query
	f.docs = documents
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeExhibitions struct {
	byID map[string]*entity.Exhibition
	err  error
}

func (f *fakeExhibitions) FindByIDs(_ context.Context, ids []string, _ []string) ([]*entity.Exhibition, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*entity.Exhibition, 0, len(ids))
	for _, id := range ids {
		if e, ok := f.byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExhibitions) GetByID(_ context.Context, id string) (*entity.Exhibition, error) {
	return f.byID[id], nil
}

func (f *fakeExhibitions) Upsert(context.Context, []*entity.Exhibition) error { return nil }

func exhibition(id, title string, popularity int64) *entity.Exhibition {
	return &entity.Exhibition{
		ID:         id,
		Title:      title,
		Context:    "context of " + title,
		Place:      "seoul",
		Date:       "2026.01.01 ~ 2026.03.01",
		TicketCast: popularity,
	}
}

func newTestPipeline(opts Options) (*Pipeline, *fakeHyde, *fakeRewriter, *fakeVectors, *fakeReranker, *fakeExhibitions) {
	hyde := &fakeHyde{}
	rewriter := &fakeRewriter{}
	vectors := &fakeVectors{
		results: []*VectorSearchResult{
			{ID: "v1", ItemID: "ex1", TextContent: "modern art", Score: 0.91},
			{ID: "v2", ItemID: "ex2", TextContent: "media art", Score: 0.88},
			{ID: "v3", ItemID: "ex3", TextContent: "photo exhibition", Score: 0.80},
		},
	}
	reranker := &fakeReranker{
		results: []RerankResult{
			{Index: 0, RelevanceScore: 0.9},
			{Index: 1, RelevanceScore: 0.4},
			{Index: 2, RelevanceScore: 0.1},
		},
	}
	exhibitions := &fakeExhibitions{byID: map[string]*entity.Exhibition{
		"ex1": exhibition("ex1", "Modern Art", 10),
		"ex2": exhibition("ex2", "Media Art", 500),
		"ex3": exhibition("ex3", "Photo", 50),
	}}

	p := NewPipeline(hyde, rewriter, &fakeEmbedder{vector: []float64{0.1, 0.2, 0.3}}, vectors, reranker, exhibitions, opts)
	return p, hyde, rewriter, vectors, reranker, exhibitions
}

func TestPipelineRunAnswersAndAwaitsFeedback(t *testing.T) {
	p, hyde, _, vectors, reranker, _ := newTestPipeline(Options{TopK: 3, ExactSearch: true})

	st := NewPipelineState("s1", "show me exhibitions", nil, "")
	result, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, result.Outcome)
	assert.True(t, result.AwaitingFeedback)
	assert.Equal(t, BranchSingleModal, st.Branch)
	assert.Equal(t, 1, hyde.calls)

	// retrieval sees the configured knobs
	require.NotNil(t, vectors.params)
	assert.Equal(t, 3, vectors.params.TopK)
	assert.True(t, vectors.params.Exact)

	// rerank is queried with the hypothetical document, not the raw query
	assert.Equal(t, st.HypotheticalDoc, reranker.query)
	assert.Len(t, reranker.docs, 3)

	// respond reorders by popularity: ex2 (500) > ex3 (50) > ex1 (10)
	require.Len(t, st.Aggregated, 3)
	assert.Equal(t, "ex2", st.Aggregated[0].Exhibition.ID)
	assert.Equal(t, "ex3", st.Aggregated[1].Exhibition.ID)
	assert.Equal(t, "ex1", st.Aggregated[2].Exhibition.ID)

	// relevance order survives inside the reranked slice
	assert.Equal(t, 0.9, st.Reranked[0].RelevanceScore)
	assert.Contains(t, st.Response, "Media Art")
}

func TestPipelineRetrieveIsIdempotentOnFrozenStore(t *testing.T) {
	p, _, _, _, _, _ := newTestPipeline(Options{TopK: 3, ExactSearch: true})

	first := NewPipelineState("s1", "query", nil, "")
	first.Embedding = []float32{0.1, 0.2, 0.3}
	require.NoError(t, p.stageRetrieve(context.Background(), first))
	require.NotEmpty(t, first.Documents)

	// same embedding against the same frozen store yields the same ordered documents
	second := NewPipelineState("s1", "query", nil, "")
	second.Embedding = []float32{0.1, 0.2, 0.3}
	require.NoError(t, p.stageRetrieve(context.Background(), second))

	assert.Equal(t, first.Documents, second.Documents)
}

func TestPipelineRespondPopularityTieKeepsRelevanceOrder(t *testing.T) {
	p, _, _, _, _, exhibitions := newTestPipeline(Options{})
	// ex1 and ex3 tie on popularity; ex1 outranks ex3 on relevance (0.9 vs 0.1)
	exhibitions.byID["ex1"].TicketCast = 50
	exhibitions.byID["ex2"].TicketCast = 500
	exhibitions.byID["ex3"].TicketCast = 50

	st := NewPipelineState("s1", "query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, st.Aggregated, 3)
	assert.Equal(t, "ex2", st.Aggregated[0].Exhibition.ID)
	assert.Equal(t, "ex1", st.Aggregated[1].Exhibition.ID)
	assert.Equal(t, "ex3", st.Aggregated[2].Exhibition.ID)
}

func TestPipelineRunSelectsMultiModalBranch(t *testing.T) {
	p, _, _, _, _, _ := newTestPipeline(Options{})

	st := NewPipelineState("s1", "what is this poster", []string{"https://img.example/poster.jpg"}, "")
	result, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, BranchMultiModal, st.Branch)
	assert.True(t, result.AwaitingFeedback)
}

func TestPipelineRunEmptyRetrievalReturnsNoResult(t *testing.T) {
	p, _, _, vectors, reranker, _ := newTestPipeline(Options{})
	vectors.results = nil

	st := NewPipelineState("s1", "query", nil, "")
	result, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoResult, result.Outcome)
	assert.False(t, result.AwaitingFeedback)
	assert.Equal(t, NoResultMessage, st.Response)
	// rerank never fires on an empty candidate set
	assert.Empty(t, reranker.docs)
}

func TestPipelineRunSimilarityThresholdGate(t *testing.T) {
	p, _, _, _, reranker, _ := newTestPipeline(Options{SimilarityThreshold: 0.5})
	reranker.results = []RerankResult{
		{Index: 0, RelevanceScore: 0.45},
		{Index: 1, RelevanceScore: 0.2},
	}

	st := NewPipelineState("s1", "query", nil, "")
	result, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoResult, result.Outcome)
	assert.Equal(t, NoResultMessage, st.Response)
	assert.Empty(t, st.Aggregated)
}

func TestPipelineRunThresholdDisabledWhenZero(t *testing.T) {
	p, _, _, _, reranker, _ := newTestPipeline(Options{SimilarityThreshold: 0})
	reranker.results = []RerankResult{{Index: 0, RelevanceScore: 0.01}}

	st := NewPipelineState("s1", "query", nil, "")
	result, err := p.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, result.Outcome)
}

func TestPipelineRerankDropsOutOfRangeIndex(t *testing.T) {
	p, _, _, _, reranker, _ := newTestPipeline(Options{})
	reranker.results = []RerankResult{
		{Index: 7, RelevanceScore: 0.95},
		{Index: 1, RelevanceScore: 0.6},
	}

	st := NewPipelineState("s1", "query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, st.Reranked, 1)
	assert.Equal(t, "ex2", st.Reranked[0].Document.ItemID)
}

func TestPipelineAggregateDropsMissingMetadata(t *testing.T) {
	p, _, _, _, _, exhibitions := newTestPipeline(Options{})
	delete(exhibitions.byID, "ex2")

	st := NewPipelineState("s1", "query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, st.Aggregated, 2)
	for _, item := range st.Aggregated {
		assert.NotEqual(t, "ex2", item.Exhibition.ID)
	}
}

func TestPipelineFeedbackAcceptEndsRun(t *testing.T) {
	p, _, rewriter, _, _, _ := newTestPipeline(Options{MaxRewrites: 3})

	st := NewPipelineState("s1", "query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)

	result, err := p.ResumeWithFeedback(context.Background(), st, true)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, result.Outcome)
	assert.False(t, result.AwaitingFeedback)
	assert.Equal(t, 0, rewriter.calls)
}

func TestPipelineFeedbackRejectRewritesAndReruns(t *testing.T) {
	p, hyde, rewriter, _, _, _ := newTestPipeline(Options{MaxRewrites: 3})

	st := NewPipelineState("s1", "original query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)
	firstDoc := st.HypotheticalDoc

	result, err := p.ResumeWithFeedback(context.Background(), st, false)
	require.NoError(t, err)

	assert.Equal(t, 1, rewriter.calls)
	assert.Equal(t, 2, hyde.calls)
	assert.Equal(t, 1, st.Cycle)
	assert.Equal(t, "rewritten: original query", st.Query)
	// derived artifacts are rebuilt from the rewritten query
	assert.NotEqual(t, firstDoc, st.HypotheticalDoc)
	assert.True(t, result.AwaitingFeedback)
}

func TestPipelineFeedbackCycleLimitReturnsBestSoFar(t *testing.T) {
	p, _, rewriter, _, reranker, _ := newTestPipeline(Options{MaxRewrites: 1})

	st := NewPipelineState("s1", "query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)
	bestResponse := st.Response
	require.NotEmpty(t, bestResponse)

	// first rejection consumes the single allowed rewrite, with a worse cycle
	reranker.results = []RerankResult{{Index: 0, RelevanceScore: 0.2}}
	_, err = p.ResumeWithFeedback(context.Background(), st, false)
	require.NoError(t, err)
	require.Equal(t, 1, st.Cycle)

	// second rejection hits the cap and falls back to the best cycle so far
	result, err := p.ResumeWithFeedback(context.Background(), st, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCycleLimit, result.Outcome)
	assert.False(t, result.AwaitingFeedback)
	assert.Equal(t, 1, rewriter.calls)
	assert.True(t, strings.HasSuffix(st.Response, bestResponse))
	assert.Equal(t, st.BestAggregated, st.Aggregated)
}

func TestPipelineRememberBestKeepsHighestRelevance(t *testing.T) {
	p, _, _, _, reranker, _ := newTestPipeline(Options{MaxRewrites: 5})

	st := NewPipelineState("s1", "query", nil, "")
	_, err := p.Run(context.Background(), st)
	require.NoError(t, err)
	firstBest := st.BestResponse
	assert.Equal(t, 0.9, st.BestScore)

	// a weaker follow-up cycle must not overwrite the stored best
	reranker.results = []RerankResult{{Index: 0, RelevanceScore: 0.3}}
	_, err = p.ResumeWithFeedback(context.Background(), st, false)
	require.NoError(t, err)

	assert.Equal(t, firstBest, st.BestResponse)
	assert.Equal(t, 0.9, st.BestScore)
}

func TestPipelineRunHydeFailureWrapsError(t *testing.T) {
	p, hyde, _, _, _, _ := newTestPipeline(Options{})
	hyde.err = fmt.Errorf("provider unavailable")

	_, err := p.Run(context.Background(), NewPipelineState("s1", "query", nil, ""))
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeGenerationFailed, appErr.Code)
}

func TestPipelineRunWithoutVectorRepository(t *testing.T) {
	hyde := &fakeHyde{}
	p := NewPipeline(hyde, &fakeRewriter{}, &fakeEmbedder{vector: []float64{0.5}}, nil, &fakeReranker{}, &fakeExhibitions{}, Options{})

	_, err := p.Run(context.Background(), NewPipelineState("s1", "query", nil, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVectorDisabled)
}
