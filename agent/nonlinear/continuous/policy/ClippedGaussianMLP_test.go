package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/offlinerl/network"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// newZeroPolicy returns a policy over 2-dimensional actions whose
// weights are all zero, so that its mean is 0 and its standard
// deviation is 1 in every state
func newZeroPolicy(t *testing.T, batch int) *ClippedGaussianMLP {
	p, err := newClippedGaussianMLP(3, []float64{-1, -1}, []float64{1, 1},
		batch, G.NewGraph(), []int{4}, []bool{true}, network.ReLUs(1),
		G.Zeroes(), LogStdMin, LogStdMax, 1)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// standardLogProb returns the log density of a under a standard
// normal
func standardLogProb(a ...float64) float64 {
	var logProb float64
	for _, x := range a {
		logProb += -0.5*x*x - 0.5*math.Log(2*math.Pi)
	}
	return logProb
}

func TestLogProb(t *testing.T) {
	p := newZeroPolicy(t, 2)

	states := []float64{1, 2, 3, -1, -2, -3}
	actions := []float64{0.5, -0.5, 0, 0.9}
	logProb, err := p.LogProb(states, actions)
	require.NoError(t, err)

	assert.InDelta(t, standardLogProb(0.5, -0.5), logProb[0], 1e-9)
	assert.InDelta(t, standardLogProb(0, 0.9), logProb[1], 1e-9)

	_, err = p.LogProb(states, actions[:2])
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	p := newZeroPolicy(t, 64)

	states := make([]float64, 64*3)
	actions, logProb, err := p.Sample(states)
	require.NoError(t, err)
	require.Len(t, actions, 128)
	require.Len(t, logProb, 64)

	for i := 0; i < 64; i++ {
		a := actions[2*i : 2*i+2]
		for _, x := range a {
			assert.True(t, x >= -1 && x <= 1, "action %v not clipped", x)
		}

		// The log density is that of the sample before clipping, so it
		// can only be checked for samples within the bounds
		if math.Abs(a[0]) < 1 && math.Abs(a[1]) < 1 {
			assert.InDelta(t, standardLogProb(a...), logProb[i], 1e-9)
		} else {
			assert.LessOrEqual(t, logProb[i], standardLogProb(a...)+1e-9)
		}
	}
}

func TestSelectAction(t *testing.T) {
	p := newZeroPolicy(t, 1)
	step := ts.New(ts.First, 0, 1, mat.NewVecDense(3, []float64{1, 2, 3}), 0)

	p.Eval()
	assert.True(t, p.IsEval())
	assert.Equal(t, []float64{0, 0}, p.SelectAction(step).RawVector().Data)

	p.Train()
	assert.False(t, p.IsEval())
	a := p.SelectAction(step).RawVector().Data
	assert.Len(t, a, 2)
	for _, x := range a {
		assert.True(t, x >= -1 && x <= 1)
	}

	batched := newZeroPolicy(t, 2)
	assert.Panics(t, func() { batched.SelectAction(step) })
}

func TestProjectLogStd(t *testing.T) {
	p := newZeroPolicy(t, 1)
	assert.Equal(t, []float64{0, 0}, p.LogStd())

	logStd := tensor.NewDense(tensor.Float64, []int{1, 2},
		tensor.WithBacking([]float64{2, -10}))
	require.NoError(t, G.Let(p.logStd, logStd))
	require.NoError(t, p.ProjectLogStd())
	assert.Equal(t, []float64{LogStdMax, LogStdMin}, p.LogStd())
}

func TestCloneWithBatch(t *testing.T) {
	p := newZeroPolicy(t, 1)
	logStd := tensor.NewDense(tensor.Float64, []int{1, 2},
		tensor.WithBacking([]float64{-1, -2}))
	require.NoError(t, G.Let(p.logStd, logStd))
	p.Eval()

	clone, err := p.CloneWithBatch(5, 2)
	require.NoError(t, err)
	defer clone.Close()

	assert.Equal(t, 5, clone.BatchSize())
	assert.Equal(t, []float64{-1, -2}, clone.LogStd())
	assert.True(t, clone.IsEval())
	assert.Len(t, clone.Learnables(), len(p.Learnables()))

	// The clone owns its weights
	require.NoError(t, G.Let(p.logStd, tensor.NewDense(tensor.Float64,
		[]int{1, 2}, tensor.WithBacking([]float64{0, 0}))))
	assert.Equal(t, []float64{-1, -2}, clone.LogStd())
}

func TestInvalidLogStdBounds(t *testing.T) {
	_, err := newClippedGaussianMLP(3, []float64{-1}, []float64{1}, 1,
		G.NewGraph(), []int{4}, []bool{true}, network.ReLUs(1), G.Zeroes(),
		0, -1, 1)
	assert.Error(t, err)
}
