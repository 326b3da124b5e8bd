package recommend

import (
	"fmt"
	"sort"

	"muse-chat-api/internal/domain/entity"
	apperrors "muse-chat-api/pkg/errors"
)

const (
	branchTopN = 15
	finalTopN  = 10
	activeTopN = 7
)

// Recommendation 推荐结果条目，目录字段加预测分
type Recommendation struct {
	Title       string  `json:"title"`
	Place       string  `json:"place"`
	Cast        string  `json:"cast"`
	Genre       string  `json:"genre"`
	TicketPrice string  `json:"ticket_price"`
	Poster      string  `json:"poster"`
	Score       float64 `json:"score"`
}

// Recommender 加载训练产物后的推理入口
type Recommender struct {
	model   *Model
	titles  *LabelEncoder
	casts   *LabelEncoder
	genres  *LabelEncoder
	triples []Sample
}

// NewRecommender 由训练快照构建推理器
func NewRecommender(snap *Snapshot) *Recommender {
	return &Recommender{
		model:   snap.Model,
		titles:  snap.Titles,
		casts:   snap.Casts,
		genres:  snap.Genres,
		triples: snap.Triples,
	}
}

type scoredTriple struct {
	Sample
	score float64
}

// Recommend 综合流派侧与演员侧的预测给出至多 10 条推荐
//
// 对全部去重组合打分后，各取流派命中与演员命中的前 15 名合并，按分数
// 降序去除同名不同版本的剧目，再与目录记录配对。不足 10 条时按分数从
// 剩余组合补齐，最终按分数升序返回。
func (r *Recommender) Recommend(cast, genre string, catalog []*entity.Musical) ([]Recommendation, error) {
	if _, ok := r.casts.Encode(cast); !ok {
		return nil, apperrors.New(apperrors.CodeUnrecognizedEntity, "unrecognized cast member").
			WithDetail(fmt.Sprintf("cast %q is not in the training vocabulary", cast))
	}
	genre = CanonicalGenre(genre)
	if _, ok := r.genres.Encode(genre); !ok {
		return nil, apperrors.New(apperrors.CodeUnrecognizedEntity, "unrecognized genre").
			WithDetail(fmt.Sprintf("genre %q is not in the training vocabulary", genre))
	}

	scored := r.scoreTriples()

	var genreSide, castSide []scoredTriple
	for _, t := range scored {
		if t.Genre == genre {
			genreSide = append(genreSide, t)
		}
		if t.Cast == cast {
			castSide = append(castSide, t)
		}
	}
	genreSide = topByScore(genreSide, branchTopN)
	castSide = topByScore(castSide, branchTopN)

	combined := append(append([]scoredTriple{}, genreSide...), castSide...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].score > combined[j].score
	})

	// 同名不同版本去重，保留分数最高的一条
	titleScores := make(map[string]float64)
	var cleanOrder []string
	for _, t := range combined {
		key := CleanTitle(t.Title)
		if _, ok := titleScores[key]; ok {
			continue
		}
		titleScores[key] = t.score
		cleanOrder = append(cleanOrder, key)
	}

	results := matchCatalog(catalog, titleScores)

	// 目录配对不足时从剩余组合按分数补齐
	if len(results) < finalTopN {
		included := make(map[string]bool, len(results))
		for _, rec := range results {
			included[CleanTitle(rec.Title)] = true
		}
		for _, key := range cleanOrder {
			included[key] = true
		}

		extraScores := make(map[string]float64)
		for _, t := range scored {
			key := CleanTitle(t.Title)
			if included[key] {
				continue
			}
			if prev, ok := extraScores[key]; !ok || t.score > prev {
				extraScores[key] = t.score
			}
		}
		extras := matchCatalog(catalog, extraScores)
		if missing := finalTopN - len(results); len(extras) > missing {
			extras = extras[:missing]
		}
		results = append(results, extras...)
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}

	if len(results) > finalTopN {
		results = results[:finalTopN]
	}

	// 升序返回，最优项在末尾
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// TopActiveTitles 返回当前在演剧目中预测分最高的至多 7 个标题
func (r *Recommender) TopActiveTitles(cast, genre, today string, catalog []*entity.Musical) []string {
	if _, ok := r.casts.Encode(cast); !ok {
		return nil
	}
	if _, ok := r.genres.Encode(genre); !ok {
		return nil
	}

	active := make(map[string]bool)
	for _, m := range catalog {
		if m.EndDate > today {
			active[m.Title] = true
		}
	}

	var candidates []scoredTriple
	for _, t := range r.scoreTriples() {
		if active[t.Title] {
			candidates = append(candidates, t)
		}
	}
	candidates = topByScore(candidates, activeTopN)

	seen := make(map[string]bool, len(candidates))
	titles := make([]string, 0, len(candidates))
	for _, t := range candidates {
		if seen[t.Title] {
			continue
		}
		seen[t.Title] = true
		titles = append(titles, t.Title)
	}
	return titles
}

func (r *Recommender) scoreTriples() []scoredTriple {
	scored := make([]scoredTriple, 0, len(r.triples))
	for _, t := range r.triples {
		ti, ok1 := r.titles.Encode(t.Title)
		ci, ok2 := r.casts.Encode(t.Cast)
		gi, ok3 := r.genres.Encode(t.Genre)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		scored = append(scored, scoredTriple{Sample: t, score: r.model.Predict(ti, ci, gi)})
	}
	return scored
}

func topByScore(ts []scoredTriple, n int) []scoredTriple {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].score > ts[j].score
	})
	if len(ts) > n {
		ts = ts[:n]
	}
	return ts
}

// matchCatalog 按去重标题将分数映射回目录记录，结果按分数降序
func matchCatalog(catalog []*entity.Musical, titleScores map[string]float64) []Recommendation {
	seen := make(map[string]bool, len(titleScores))
	var out []Recommendation
	for _, m := range catalog {
		key := CleanTitle(m.Title)
		score, ok := titleScores[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Recommendation{
			Title:       m.Title,
			Place:       m.Place,
			Cast:        m.Cast,
			Genre:       m.Genre,
			TicketPrice: m.TicketPrice,
			Poster:      m.Poster,
			Score:       score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
