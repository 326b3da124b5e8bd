package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-chat-api/internal/domain/entity"
)

func musical(title, cast, genre string) *entity.Musical {
	return &entity.Musical{Title: title, Cast: cast, Genre: genre}
}

// fixtureCatalog: "김도현" appears in five 대학로 shows, everyone else once.
func fixtureCatalog() []*entity.Musical {
	return []*entity.Musical{
		musical("그날들", "김도현, 박은태", "창작"), // canonicalized to 대학로
		musical("빨래", "김도현", "대학로"),
		musical("사의찬미", "김도현", "대학로"),
		musical("여신님이 보고 계셔", "김도현", "대학로"),
		musical("난쟁이들", "김도현", "대학로"),
		musical("오페라의 유령", "조승우", "라이선스"),
		musical("시카고", "아이비", "라이선스"),
		musical("레베카", "옥주현", "라이선스"),
		musical("영웅", "정성화", "창작대형"),
		musical("캣츠", "브래드리틀", "내한"),
	}
}

func TestBuildDatasetFiltersInfrequentCasts(t *testing.T) {
	ds := BuildDataset(fixtureCatalog(), DatasetOptions{MinCastPositives: 5, NegativeRatio: 4, Seed: 42})

	// only 김도현 reaches five appearances
	for _, s := range ds.Samples {
		assert.Equal(t, "김도현", s.Cast)
	}

	positives := 0
	for _, s := range ds.Samples {
		if s.Target == 1 {
			positives++
		}
	}
	assert.Equal(t, 5, positives)
}

func TestBuildDatasetNegativesExcludeOwnTitlesAndGenres(t *testing.T) {
	ds := BuildDataset(fixtureCatalog(), DatasetOptions{MinCastPositives: 5, NegativeRatio: 4, Seed: 42})

	ownTitles := map[string]bool{
		"그날들": true, "빨래": true, "사의찬미": true, "여신님이 보고 계셔": true, "난쟁이들": true,
	}
	for _, s := range ds.Samples {
		if s.Target != 0 {
			continue
		}
		assert.False(t, ownTitles[s.Title], "negative %q overlaps the cast's own titles", s.Title)
		assert.NotEqual(t, "대학로", s.Genre, "negative must come from a foreign genre")
	}
}

func TestBuildDatasetRespectsGlobalNegativeCap(t *testing.T) {
	ds := BuildDataset(fixtureCatalog(), DatasetOptions{MinCastPositives: 5, NegativeRatio: 1, Seed: 42})

	positives, negatives := 0, 0
	for _, s := range ds.Samples {
		if s.Target == 1 {
			positives++
		} else {
			negatives++
		}
	}
	assert.LessOrEqual(t, negatives, positives*1)
}

func TestBuildDatasetDeterministicForSeed(t *testing.T) {
	a := BuildDataset(fixtureCatalog(), DatasetOptions{Seed: 7})
	b := BuildDataset(fixtureCatalog(), DatasetOptions{Seed: 7})
	assert.Equal(t, a.Samples, b.Samples)
}

func TestBuildDatasetCanonicalizesGenres(t *testing.T) {
	ds := BuildDataset(fixtureCatalog(), DatasetOptions{})
	_, ok := ds.Genres.Encode("대학로")
	assert.True(t, ok)
	_, ok = ds.Genres.Encode("창작")
	assert.False(t, ok, "raw long-tail genre must not survive canonicalization")
}

func TestUniqueTriplesDeduplicates(t *testing.T) {
	ds := &Dataset{Samples: []Sample{
		{Cast: "a", Title: "t1", Genre: "g1", Target: 1},
		{Cast: "a", Title: "t1", Genre: "g1", Target: 0},
		{Cast: "a", Title: "t2", Genre: "g1", Target: 1},
	}}
	triples := ds.UniqueTriples()
	require.Len(t, triples, 2)
	assert.Equal(t, "t1", triples[0].Title)
	assert.Equal(t, "t2", triples[1].Title)
}
