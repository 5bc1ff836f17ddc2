package tracker

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "eval", "metrics.gob")
	m := NewMetrics(filename)

	m.Track(10, map[string]float64{"return_mean": 1})
	m.Track(20, map[string]float64{"return_mean": 2, "length_mean": 5})
	m.Track(30, map[string]float64{"length_mean": 6})

	data := m.Data()
	assert.Equal(t, []int{10, 20, 30}, data.Epochs)
	require.Len(t, data.Values["return_mean"], 3)
	assert.Equal(t, []float64{1, 2}, data.Values["return_mean"][:2])
	assert.True(t, math.IsNaN(data.Values["return_mean"][2]))
	assert.True(t, math.IsNaN(data.Values["length_mean"][0]))
	assert.Equal(t, []float64{5, 6}, data.Values["length_mean"][1:])

	require.NoError(t, m.Save())
	loaded, err := LoadData(filename)
	require.NoError(t, err)
	assert.Equal(t, data.Epochs, loaded.Epochs)
	assert.Equal(t, data.Values["length_mean"][1:],
		loaded.Values["length_mean"][1:])

	_, err = LoadData(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}
