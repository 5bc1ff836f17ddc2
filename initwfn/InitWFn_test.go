package initwfn

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestSeededIsReproducible(t *testing.T) {
	init, err := NewGlorotU(1.0)
	require.NoError(t, err)

	w1 := init.Seeded(5)(tensor.Float64, 4, 3).([]float64)
	w2 := init.Seeded(5)(tensor.Float64, 4, 3).([]float64)
	w3 := init.Seeded(6)(tensor.Float64, 4, 3).([]float64)

	assert.Len(t, w1, 12)
	assert.Equal(t, w1, w2)
	assert.NotEqual(t, w1, w3)

	limit := math.Sqrt(6.0 / 7.0)
	for _, w := range w1 {
		assert.LessOrEqual(t, math.Abs(w), limit)
	}
}

func TestFloat32Weights(t *testing.T) {
	init, err := NewHeN(1.0)
	require.NoError(t, err)

	w := init.InitWFn()(tensor.Float32, 2, 2)
	assert.IsType(t, []float32{}, w)
}

func TestJSONRoundTrip(t *testing.T) {
	init, err := NewHeU(2.0)
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	var decoded InitWFn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, HeU, decoded.Type)
	assert.Equal(t, HeUConfig{Gain: 2.0}, decoded.Config)
	assert.NotNil(t, decoded.InitWFn())
}

func TestUnmarshalErrors(t *testing.T) {
	inputs := []string{
		`{"Type":"Orthogonal","Config":{}}`,
		`{"Type":"GlorotU","Config":{"Gain":0}}`,
		`{"Type":"Uniform","Config":{"Low":1,"High":1}}`,
		`{"Type":"Gaussian","Config":"wide"}`,
	}
	for _, input := range inputs {
		var decoded InitWFn
		assert.Error(t, json.Unmarshal([]byte(input), &decoded), input)
	}
}

func TestConstant(t *testing.T) {
	init, err := NewConstant(0.5)
	require.NoError(t, err)

	w := init.Seeded(3)(tensor.Float64, 2, 2)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, w)
}

func TestValidate(t *testing.T) {
	_, err := NewHeN(-1)
	assert.Error(t, err)

	_, err = NewGaussian(0, 0)
	assert.Error(t, err)
}
