package recommend

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelPredictReturnsProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewModel(4, 3, 2, 16, rng)

	for title := 0; title < 4; title++ {
		p := m.Predict(title, title%3, title%2)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
	}
}

func TestModelPredictDeterministic(t *testing.T) {
	a := NewModel(4, 3, 2, 8, rand.New(rand.NewSource(9)))
	b := NewModel(4, 3, 2, 8, rand.New(rand.NewSource(9)))
	assert.Equal(t, a.Predict(1, 2, 1), b.Predict(1, 2, 1))
}

func TestModelSnapshotRestore(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := NewModel(2, 2, 2, 4, rng)

	before := m.Predict(0, 0, 0)
	snap := m.snapshot()

	// one noisy update moves the prediction
	g := m.newGradients()
	cache := m.forward(0, 0, 0, true, rng)
	m.backward(cache, 1, g)
	m.applyAdam(g, 0.1)
	require.NotEqual(t, before, m.Predict(0, 0, 0))

	m.restore(snap)
	assert.Equal(t, before, m.Predict(0, 0, 0))
}

func TestTrainingReducesLoss(t *testing.T) {
	// two clearly separable casts: cast 0 plays titles {0,1}, cast 1 plays {2,3}
	samples := []Sample{
		{Title: "t0", Cast: "c0", Genre: "g0", Target: 1},
		{Title: "t1", Cast: "c0", Genre: "g0", Target: 1},
		{Title: "t2", Cast: "c0", Genre: "g1", Target: 0},
		{Title: "t3", Cast: "c0", Genre: "g1", Target: 0},
		{Title: "t2", Cast: "c1", Genre: "g1", Target: 1},
		{Title: "t3", Cast: "c1", Genre: "g1", Target: 1},
		{Title: "t0", Cast: "c1", Genre: "g0", Target: 0},
		{Title: "t1", Cast: "c1", Genre: "g0", Target: 0},
	}
	ds := &Dataset{
		Samples: samples,
		Titles:  NewLabelEncoder(),
		Casts:   NewLabelEncoder(),
		Genres:  NewLabelEncoder(),
	}
	for _, s := range samples {
		ds.Titles.Fit(s.Title)
		ds.Casts.Fit(s.Cast)
		ds.Genres.Fit(s.Genre)
	}

	model, err := Train(context.Background(), ds, TrainOptions{
		EmbeddingDim: 8,
		Epochs:       30,
		BatchSize:    4,
		LearningRate: 0.01,
		Seed:         42,
	})
	require.NoError(t, err)

	encoded := make([]encodedSample, 0, len(samples))
	for _, s := range samples {
		ti, _ := ds.Titles.Encode(s.Title)
		ci, _ := ds.Casts.Encode(s.Cast)
		gi, _ := ds.Genres.Encode(s.Genre)
		encoded = append(encoded, encodedSample{title: ti, cast: ci, genre: gi, y: s.Target})
	}

	// an untrained model with the same shape is the baseline
	baseline := NewModel(ds.Titles.Len(), ds.Casts.Len(), ds.Genres.Len(), 8, rand.New(rand.NewSource(42)))
	assert.Less(t, evaluate(model, encoded), evaluate(baseline, encoded))
}

func TestTrainRejectsEmptyDataset(t *testing.T) {
	_, err := Train(context.Background(), nil, TrainOptions{})
	assert.Error(t, err)

	_, err = Train(context.Background(), &Dataset{}, TrainOptions{})
	assert.Error(t, err)
}

func TestTrainRejectsUnencodedSample(t *testing.T) {
	ds := &Dataset{
		Samples: []Sample{{Title: "t", Cast: "c", Genre: "g", Target: 1}},
		Titles:  NewLabelEncoder(),
		Casts:   NewLabelEncoder(),
		Genres:  NewLabelEncoder(),
	}
	_, err := Train(context.Background(), ds, TrainOptions{})
	assert.Error(t, err)
}

func TestSampleWeight(t *testing.T) {
	assert.InDelta(t, 0.3, sampleWeight(0), 1e-9)
	assert.InDelta(t, 1.0, sampleWeight(1), 1e-9)
}
