package recommend

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-chat-api/internal/domain/entity"
	apperrors "muse-chat-api/pkg/errors"
)

func trainedRecommender(t *testing.T, catalog []*entity.Musical) *Recommender {
	t.Helper()

	ds := BuildDataset(catalog, DatasetOptions{MinCastPositives: 2, NegativeRatio: 4, Seed: 42})
	require.NotEmpty(t, ds.Samples)

	model, err := Train(context.Background(), ds, TrainOptions{
		EmbeddingDim: 8,
		Epochs:       5,
		BatchSize:    8,
		LearningRate: 0.01,
		Seed:         42,
	})
	require.NoError(t, err)

	return NewRecommender(&Snapshot{
		Model:   model,
		Titles:  ds.Titles,
		Casts:   ds.Casts,
		Genres:  ds.Genres,
		Triples: ds.UniqueTriples(),
	})
}

func recommenderCatalog() []*entity.Musical {
	return []*entity.Musical{
		musical("그날들", "김도현, 박은태", "대학로"),
		musical("빨래", "김도현, 박은태", "대학로"),
		musical("사의찬미", "김도현", "대학로"),
		musical("여신님이 보고 계셔", "박은태", "대학로"),
		musical("오페라의 유령", "조승우, 아이비", "라이선스"),
		musical("시카고", "조승우, 아이비", "라이선스"),
		musical("레베카", "옥주현, 조승우", "라이선스"),
		musical("엘리자벳", "옥주현, 아이비", "라이선스"),
		musical("영웅", "정성화, 민우혁", "창작대형"),
		musical("명성황후", "정성화, 민우혁", "창작대형"),
		musical("지킬앤하이드", "조승우, 민우혁", "라이선스"),
		musical("맨오브라만차", "정성화, 조승우", "라이선스"),
		musical("헤드윅", "옥주현, 아이비", "라이선스"),
		musical("팬텀", "민우혁, 박은태", "창작대형"),
	}
}

func TestRecommendUnknownCastReturnsUnrecognizedEntity(t *testing.T) {
	rec := trainedRecommender(t, recommenderCatalog())

	_, err := rec.Recommend("존재하지않는배우", "대학로", recommenderCatalog())
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeUnrecognizedEntity, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestRecommendUnknownGenreReturnsUnrecognizedEntity(t *testing.T) {
	rec := trainedRecommender(t, recommenderCatalog())

	_, err := rec.Recommend("김도현", "발레", recommenderCatalog())
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeUnrecognizedEntity, appErr.Code)
}

func TestRecommendCanonicalizesGenreInput(t *testing.T) {
	rec := trainedRecommender(t, recommenderCatalog())

	// "연애" folds into "대학로" before the vocabulary check
	items, err := rec.Recommend("김도현", "연애", recommenderCatalog())
	require.NoError(t, err)
	assert.NotEmpty(t, items)
}

func TestRecommendReturnsAscendingUniqueTitles(t *testing.T) {
	catalog := recommenderCatalog()
	rec := trainedRecommender(t, catalog)

	items, err := rec.Recommend("김도현", "대학로", catalog)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.LessOrEqual(t, len(items), 10)

	// ascending by score, best entry last
	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i-1].Score, items[i].Score)
	}

	seen := make(map[string]bool)
	for _, item := range items {
		key := CleanTitle(item.Title)
		assert.False(t, seen[key], "duplicate clean title %q", key)
		seen[key] = true
	}
}

func TestRecommendBackfillsFromRemainingTriples(t *testing.T) {
	catalog := recommenderCatalog()
	rec := trainedRecommender(t, catalog)

	items, err := rec.Recommend("김도현", "대학로", catalog)
	require.NoError(t, err)

	// both branches only cover 대학로 titles plus 김도현 shows (4 distinct);
	// backfill pulls foreign-genre catalog entries in to fill the quota
	assert.Len(t, items, 10)

	seen := make(map[string]bool)
	for _, item := range items {
		key := CleanTitle(item.Title)
		assert.False(t, seen[key], "duplicate clean title %q", key)
		seen[key] = true
	}
}

func TestRecommendDeduplicatesCatalogVersions(t *testing.T) {
	catalog := recommenderCatalog()
	// a re-run of the same show must not produce a second entry
	catalog = append(catalog, musical("[앵콜] 그날들", "김도현, 박은태", "대학로"))

	rec := trainedRecommender(t, recommenderCatalog())
	items, err := rec.Recommend("김도현", "대학로", catalog)
	require.NoError(t, err)

	count := 0
	for _, item := range items {
		if CleanTitle(item.Title) == "그날들" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestTopActiveTitles(t *testing.T) {
	catalog := recommenderCatalog()
	for i, m := range catalog {
		if i%2 == 0 {
			m.EndDate = "2026.12.31"
		} else {
			m.EndDate = "2025.01.01"
		}
	}
	rec := trainedRecommender(t, catalog)

	titles := rec.TopActiveTitles("김도현", "대학로", "2026.09.01", catalog)
	assert.LessOrEqual(t, len(titles), 7)

	active := make(map[string]bool)
	for _, m := range catalog {
		if m.EndDate > "2026.09.01" {
			active[m.Title] = true
		}
	}
	for _, title := range titles {
		assert.True(t, active[title], "title %q is not running anymore", title)
	}
}

func TestTopActiveTitlesUnknownEntity(t *testing.T) {
	rec := trainedRecommender(t, recommenderCatalog())
	assert.Nil(t, rec.TopActiveTitles("없는배우", "대학로", "2026.09.01", recommenderCatalog()))
}
