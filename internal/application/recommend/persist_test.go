package recommend

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	titles := NewLabelEncoder()
	casts := NewLabelEncoder()
	genres := NewLabelEncoder()
	for _, v := range []string{"t0", "t1"} {
		titles.Fit(v)
	}
	casts.Fit("c0")
	genres.Fit("g0")

	snap := &Snapshot{
		Model:   NewModel(2, 1, 1, 4, rng),
		Titles:  titles,
		Casts:   casts,
		Genres:  genres,
		Triples: []Sample{{Title: "t0", Cast: "c0", Genre: "g0", Target: 1}},
	}
	want := snap.Model.Predict(0, 0, 0)

	path := filepath.Join(t.TempDir(), "weights", "model.json")
	require.NoError(t, SaveSnapshot(path, snap))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// predictions survive the JSON round trip
	assert.Equal(t, want, loaded.Model.Predict(0, 0, 0))
	idx, ok := loaded.Titles.Encode("t1")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Len(t, loaded.Triples, 1)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestLoadSnapshotIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model": null}`), 0o644))

	_, err := LoadSnapshot(path)
	assert.Error(t, err)
}

func TestSaveSnapshotRejectsEmpty(t *testing.T) {
	assert.Error(t, SaveSnapshot("x.json", nil))
	assert.Error(t, SaveSnapshot("x.json", &Snapshot{}))
}
