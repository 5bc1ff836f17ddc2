package inac

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
	"github.com/samuelfneumann/offlinerl/d4rl"
	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/environment/envconfig"
	"github.com/samuelfneumann/offlinerl/network"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

const testBatch = 8

func newTestConfig(t *testing.T) Config {
	c, err := DefaultConfig([]int{16, 16}, 1e-2, 0.5, 0.99, 0.1, testBatch)
	require.NoError(t, err)
	return c
}

func newTestEnv(t *testing.T) env.Environment {
	e, _, err := envconfig.CreatePendulum(envconfig.PendulumCutoff, 1,
		envconfig.Discount)
	require.NoError(t, err)
	return e
}

// newTestBuffer returns a buffer of random pendulum transitions
func newTestBuffer(t *testing.T, e env.Environment) *expreplay.Offline {
	d, err := d4rl.Collect(e, d4rl.NewUniformActor(e.ActionSpec(), 1), 300)
	require.NoError(t, err)
	buffer, err := expreplay.NewOffline(d, testBatch, 1)
	require.NoError(t, err)
	return buffer
}

func newTestAgent(t *testing.T, e env.Environment, seed uint64) *InAC {
	a, err := New(e, newTestConfig(t), seed)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestUpdate(t *testing.T) {
	e := newTestEnv(t)
	buffer := newTestBuffer(t, e)
	a := newTestAgent(t, e, 1)

	for i := 0; i < 5; i++ {
		b, err := buffer.Sample()
		require.NoError(t, err)

		metrics, err := a.Update(b)
		require.NoError(t, err)

		for _, name := range []string{ActorLoss, BehaviourLoss, QLoss, VLoss,
			QPred, VPred} {
			require.Contains(t, metrics, name)
			assert.False(t, math.IsNaN(metrics[name]), "%v is NaN", name)
			assert.False(t, math.IsInf(metrics[name], 0), "%v is Inf", name)
		}
		assert.GreaterOrEqual(t, metrics[QLoss], 0.0)
		assert.GreaterOrEqual(t, metrics[VLoss], 0.0)
	}

	b, err := buffer.SampleN(testBatch + 1)
	require.NoError(t, err)
	_, err = a.Update(b)
	assert.Error(t, err)
}

func TestTargets(t *testing.T) {
	v := vTargets([]float64{1, -2}, []float64{0.5, -1}, 0.1)
	assert.InDeltaSlice(t, []float64{0.95, -1.9}, v, 1e-12)

	// The second transition is terminal, so its next value is ignored
	q := qTargets([]float64{1, 2}, []float64{1, 0}, []float64{3, 100},
		[]float64{-1, 5}, 0.9, 0.5)
	assert.InDeltaSlice(t, []float64{4.15, 2}, q, 1e-12)

	w := actorWeights([]float64{0, 10, -10, 1}, []float64{0, 0, 0, 1},
		[]float64{0, 0, 0, math.Log(2)}, 0.5, DefaultClipMin, DefaultClipMax)
	assert.InDeltaSlice(t, []float64{1, DefaultClipMax, DefaultClipMin, 0.5},
		w, 1e-12)
}

func TestUpdateTargets(t *testing.T) {
	e := newTestEnv(t)
	buffer := newTestBuffer(t, e)
	a := newTestAgent(t, e, 1)

	b, err := buffer.Sample()
	require.NoError(t, err)
	b.Reward[0] = 0.7
	b.Discount[0] = 0
	b.Discount[1] = 1

	_, _, err = a.updateQ(b)
	require.NoError(t, err)
	targets := a.qTargets.Value().Data().([]float64)
	assert.Equal(t, 0.7, targets[0])

	_, err = a.updateActor(b)
	require.NoError(t, err)
	weights := append([]float64{},
		a.weights.Value().Data().([]float64)...)

	// The critic, value function and behaviour policy are untouched by
	// the actor update, so the weights can be recomputed
	minQ, err := a.targetMinQ(a.qInput, b.State, b.Action)
	require.NoError(t, err)
	value, err := a.predictV(b.State)
	require.NoError(t, err)
	logProb, err := a.behaviour.LogProb(b.State, b.Action)
	require.NoError(t, err)

	want := actorWeights(minQ, value, logProb, a.temperature, a.clipMin,
		a.clipMax)
	assert.InDeltaSlice(t, want, weights, 1e-9)
	for _, w := range weights {
		assert.GreaterOrEqual(t, w, DefaultClipMin)
		assert.LessOrEqual(t, w, DefaultClipMax)
	}
}

func TestBehaviourLearnsDataset(t *testing.T) {
	e := newTestEnv(t)
	a := newTestAgent(t, e, 1)

	// Every action in the dataset is 0.5
	d, err := d4rl.Collect(e, constantActor(0.5), 100)
	require.NoError(t, err)
	buffer, err := expreplay.NewOffline(d, testBatch, 1)
	require.NoError(t, err)

	var first, last float64
	for i := 0; i < 150; i++ {
		b, err := buffer.Sample()
		require.NoError(t, err)
		metrics, err := a.Update(b)
		require.NoError(t, err)

		if i == 0 {
			first = metrics[BehaviourLoss]
		}
		last = metrics[BehaviourLoss]
	}
	assert.Less(t, last, first)

	for _, logStd := range a.behaviour.LogStd() {
		assert.GreaterOrEqual(t, logStd, policy.LogStdMin)
		assert.Less(t, logStd, 0.0)
	}
}

func TestTargetCriticPolyak(t *testing.T) {
	e := newTestEnv(t)
	buffer := newTestBuffer(t, e)
	a := newTestAgent(t, e, 1)

	// The target critic starts as a copy of the critic
	assert.Equal(t, network.StateDict(a.q), network.StateDict(a.targetQ))

	before := network.StateDict(a.targetQ)
	b, err := buffer.Sample()
	require.NoError(t, err)
	_, err = a.Update(b)
	require.NoError(t, err)

	q := network.StateDict(a.q)
	after := network.StateDict(a.targetQ)
	for i := range after {
		for j := range after[i] {
			want := (1-a.tau)*before[i][j] + a.tau*q[i][j]
			assert.InDelta(t, want, after[i][j], 1e-12)
		}
	}
}

func TestGobRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	buffer := newTestBuffer(t, e)
	a := newTestAgent(t, e, 1)

	for i := 0; i < 3; i++ {
		b, err := buffer.Sample()
		require.NoError(t, err)
		_, err = a.Update(b)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(a))

	loaded := newTestAgent(t, e, 2)
	require.NoError(t, gob.NewDecoder(&buf).Decode(loaded))

	assert.Equal(t, network.StateDict(a.trainPolicy),
		network.StateDict(loaded.policy))
	assert.Equal(t, network.StateDict(a.behaviour),
		network.StateDict(loaded.behaviour))
	assert.Equal(t, network.StateDict(a.targetQ),
		network.StateDict(loaded.targetQ))
	assert.Equal(t, network.StateDict(a.v), network.StateDict(loaded.v))

	a.Eval()
	loaded.Eval()
	step := ts.New(ts.First, 0, 1, mat.NewVecDense(2, []float64{0.3, -0.2}),
		0)
	assert.Equal(t, a.SelectAction(step).RawVector().Data,
		loaded.SelectAction(step).RawVector().Data)

	var empty InAC
	assert.Error(t, empty.GobDecode(buf.Bytes()))
}

func TestEvalMode(t *testing.T) {
	e := newTestEnv(t)
	a := newTestAgent(t, e, 1)
	step := ts.New(ts.First, 0, 1, mat.NewVecDense(2, []float64{0.3, -0.2}),
		0)

	a.Eval()
	assert.True(t, a.IsEval())
	first := a.SelectAction(step).AtVec(0)
	assert.Equal(t, first, a.SelectAction(step).AtVec(0))

	a.Train()
	assert.False(t, a.IsEval())
	action := a.SelectAction(step).AtVec(0)
	assert.True(t, action >= -1 && action <= 1)
}

func TestTypedConfigJSON(t *testing.T) {
	c := newTestConfig(t)
	data, err := json.Marshal(agent.NewTypedConfig(c))
	require.NoError(t, err)

	var typed agent.TypedConfig
	require.NoError(t, json.Unmarshal(data, &typed))
	assert.Equal(t, agent.InACClippedGaussianMLP, typed.Type)

	decoded, ok := typed.Config.(Config)
	require.True(t, ok)
	assert.Equal(t, c.Hidden, decoded.Hidden)
	assert.Equal(t, c.Temperature, decoded.Temperature)
	require.NoError(t, decoded.Validate())

	a, err := decoded.CreateAgent(newTestEnv(t), 1)
	require.NoError(t, err)
	assert.True(t, decoded.ValidAgent(a))
	require.NoError(t, a.(*InAC).Close())
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"Activations": func(c *Config) { c.Activations = nil },
		"Biases":      func(c *Config) { c.Biases = []bool{true} },
		"Temperature": func(c *Config) { c.Temperature = 0 },
		"Discount":    func(c *Config) { c.Discount = 1.5 },
		"Tau":         func(c *Config) { c.Tau = 0 },
		"BatchSize":   func(c *Config) { c.BatchSize = 0 },
		"Ensemble":    func(c *Config) { c.EnsembleSize = 0 },
		"LogStd":      func(c *Config) { c.LogStdMin = 1 },
		"Clip":        func(c *Config) { c.ClipMin = 0 },
		"Solver":      func(c *Config) { c.QSolver = nil },
		"InitWFn":     func(c *Config) { c.InitWFn = nil },
	}

	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestConfig(t)
			modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

// constantActor always selects the same action
type constantActor float64

func (c constantActor) SelectAction(ts.TimeStep) *mat.VecDense {
	return mat.NewVecDense(1, []float64{float64(c)})
}
