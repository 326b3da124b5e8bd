package recommend

import (
	"math/rand"

	"muse-chat-api/internal/domain/entity"
)

// Sample 一条训练样本，目标为 1 表示该演员确实出演过该剧目
type Sample struct {
	Cast   string  `json:"cast"`
	Title  string  `json:"title"`
	Genre  string  `json:"genre"`
	Target float64 `json:"target"`
}

// Dataset 带负采样的训练集及各字段的标签编码器
type Dataset struct {
	Samples []Sample      `json:"samples"`
	Titles  *LabelEncoder `json:"titles"`
	Casts   *LabelEncoder `json:"casts"`
	Genres  *LabelEncoder `json:"genres"`
}

// DatasetOptions 数据集构建参数
type DatasetOptions struct {
	// MinCastPositives 纳入训练的演员至少需要的正样本数
	MinCastPositives int
	// NegativeRatio 负样本相对正样本的上限倍数，单演员与全局同时生效
	NegativeRatio int
	// Seed 负采样随机种子
	Seed int64
}

func (o DatasetOptions) normalized() DatasetOptions {
	if o.MinCastPositives <= 0 {
		o.MinCastPositives = 5
	}
	if o.NegativeRatio <= 0 {
		o.NegativeRatio = 4
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

type castRow struct {
	cast  string
	title string
	genre string
}

type movieKey struct {
	title string
	genre string
}

// BuildDataset 由剧目目录构建带负采样的训练集
//
// 演员栏按逗号展开为单人行，出演次数不足 MinCastPositives 的演员被丢弃。
// 每个演员的负样本从其未出演且流派不同的剧目中随机抽取，数量不超过其
// 正样本数的 NegativeRatio 倍，全体负样本同样受全局 NegativeRatio 约束。
func BuildDataset(musicals []*entity.Musical, opts DatasetOptions) *Dataset {
	opts = opts.normalized()
	rng := rand.New(rand.NewSource(opts.Seed))

	// 演员展开
	var rows []castRow
	for _, m := range musicals {
		genre := CanonicalGenre(m.Genre)
		for _, member := range SplitCast(m.Cast) {
			rows = append(rows, castRow{cast: member, title: m.Title, genre: genre})
		}
	}

	// 出演次数统计与演员首现顺序
	castCounts := make(map[string]int)
	var castOrder []string
	for _, r := range rows {
		if castCounts[r.cast] == 0 {
			castOrder = append(castOrder, r.cast)
		}
		castCounts[r.cast]++
	}

	// 全量剧目（去重）
	var allMovies []movieKey
	seenMovies := make(map[movieKey]bool)
	for _, r := range rows {
		key := movieKey{title: r.title, genre: r.genre}
		if !seenMovies[key] {
			seenMovies[key] = true
			allMovies = append(allMovies, key)
		}
	}

	// 正样本与每个演员的出演画像
	var positives []Sample
	castTitles := make(map[string]map[string]bool)
	castGenres := make(map[string]map[string]bool)
	for _, r := range rows {
		if castCounts[r.cast] < opts.MinCastPositives {
			continue
		}
		positives = append(positives, Sample{Cast: r.cast, Title: r.title, Genre: r.genre, Target: 1})
		if castTitles[r.cast] == nil {
			castTitles[r.cast] = make(map[string]bool)
			castGenres[r.cast] = make(map[string]bool)
		}
		castTitles[r.cast][r.title] = true
		castGenres[r.cast][r.genre] = true
	}

	// 单演员负采样
	var negatives []Sample
	for _, cast := range castOrder {
		titles := castTitles[cast]
		if titles == nil {
			continue
		}
		genres := castGenres[cast]

		var candidates []movieKey
		for _, movie := range allMovies {
			if titles[movie.title] || genres[movie.genre] {
				continue
			}
			candidates = append(candidates, movie)
		}

		limit := len(titles) * opts.NegativeRatio
		if limit > len(candidates) {
			limit = len(candidates)
		}
		for _, idx := range rng.Perm(len(candidates))[:limit] {
			movie := candidates[idx]
			negatives = append(negatives, Sample{Cast: cast, Title: movie.title, Genre: movie.genre, Target: 0})
		}
	}

	// 全局比例约束
	if maxNeg := len(positives) * opts.NegativeRatio; len(negatives) > maxNeg {
		sampled := make([]Sample, 0, maxNeg)
		for _, idx := range rng.Perm(len(negatives))[:maxNeg] {
			sampled = append(sampled, negatives[idx])
		}
		negatives = sampled
	}

	ds := &Dataset{
		Samples: append(positives, negatives...),
		Titles:  NewLabelEncoder(),
		Casts:   NewLabelEncoder(),
		Genres:  NewLabelEncoder(),
	}
	for _, s := range ds.Samples {
		ds.Titles.Fit(s.Title)
		ds.Casts.Fit(s.Cast)
		ds.Genres.Fit(s.Genre)
	}
	return ds
}

// UniqueTriples 返回去重后的 (标题, 演员, 流派) 组合，保持首现顺序
func (d *Dataset) UniqueTriples() []Sample {
	seen := make(map[[3]string]bool, len(d.Samples))
	out := make([]Sample, 0, len(d.Samples))
	for _, s := range d.Samples {
		key := [3]string{s.Title, s.Cast, s.Genre}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
