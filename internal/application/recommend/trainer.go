package recommend

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"muse-chat-api/pkg/logger"
)

// TrainOptions 训练超参数
type TrainOptions struct {
	EmbeddingDim int
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Patience 验证损失连续未改善的容忍轮数，超过后提前停止并回滚最优权重
	Patience int
	Seed     int64
}

func (o TrainOptions) normalized() TrainOptions {
	if o.EmbeddingDim <= 0 {
		o.EmbeddingDim = 16
	}
	if o.Epochs <= 0 {
		o.Epochs = 20
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.001
	}
	if o.Patience <= 0 {
		o.Patience = 3
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

type encodedSample struct {
	title, cast, genre int
	y                  float64
}

// Train 在数据集上训练模型，80/20 划分验证集并按验证损失早停
func Train(ctx context.Context, ds *Dataset, opts TrainOptions) (*Model, error) {
	opts = opts.normalized()
	if ds == nil || len(ds.Samples) == 0 {
		return nil, fmt.Errorf("training dataset is empty")
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	model := NewModel(ds.Titles.Len(), ds.Casts.Len(), ds.Genres.Len(), opts.EmbeddingDim, rng)

	encoded := make([]encodedSample, 0, len(ds.Samples))
	for _, s := range ds.Samples {
		ti, ok1 := ds.Titles.Encode(s.Title)
		ci, ok2 := ds.Casts.Encode(s.Cast)
		gi, ok3 := ds.Genres.Encode(s.Genre)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("sample references unencoded label: %q/%q/%q", s.Title, s.Cast, s.Genre)
		}
		encoded = append(encoded, encodedSample{title: ti, cast: ci, genre: gi, y: s.Target})
	}

	rng.Shuffle(len(encoded), func(i, j int) {
		encoded[i], encoded[j] = encoded[j], encoded[i]
	})
	splitAt := len(encoded) * 8 / 10
	if splitAt == 0 {
		splitAt = len(encoded)
	}
	train, val := encoded[:splitAt], encoded[splitAt:]

	logger.Info(ctx, "recommend training started",
		"samples", len(encoded),
		"train", len(train),
		"val", len(val),
		"titles", ds.Titles.Len(),
		"casts", ds.Casts.Len(),
		"genres", ds.Genres.Len(),
	)

	bestLoss := math.Inf(1)
	var bestSnapshot map[string][]float64
	stale := 0

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		rng.Shuffle(len(train), func(i, j int) {
			train[i], train[j] = train[j], train[i]
		})

		trainLoss := 0.0
		for start := 0; start < len(train); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(train) {
				end = len(train)
			}
			g := model.newGradients()
			for _, s := range train[start:end] {
				cache := model.forward(s.title, s.cast, s.genre, true, rng)
				trainLoss += model.backward(cache, s.y, g)
			}
			model.applyAdam(g, opts.LearningRate)
		}
		trainLoss /= float64(len(train))

		valLoss := evaluate(model, val)
		logger.Info(ctx, "recommend training epoch finished",
			"epoch", epoch,
			"train_loss", trainLoss,
			"val_loss", valLoss,
		)

		if len(val) == 0 {
			continue
		}
		if valLoss < bestLoss {
			bestLoss = valLoss
			bestSnapshot = model.snapshot()
			stale = 0
			continue
		}
		stale++
		if stale >= opts.Patience {
			logger.Info(ctx, "recommend training stopped early",
				"epoch", epoch, "best_val_loss", bestLoss)
			break
		}
	}

	if bestSnapshot != nil {
		model.restore(bestSnapshot)
	}
	return model, nil
}

// evaluate 计算加权交叉熵损失，不做参数更新
func evaluate(model *Model, samples []encodedSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range samples {
		p := model.Predict(s.title, s.cast, s.genre)
		w := sampleWeight(s.y)
		total += -w * (s.y*math.Log(p+1e-12) + (1-s.y)*math.Log(1-p+1e-12))
	}
	return total / float64(len(samples))
}
