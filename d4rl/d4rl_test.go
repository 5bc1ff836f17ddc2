package d4rl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/offlinerl/environment/envconfig"
	"github.com/samuelfneumann/offlinerl/environment/wrappers"
)

// newTestDataset returns a dataset with 2-dimensional observations and
// 1-dimensional actions made up of trajectories with the given
// lengths. Observation features of transition i are (sign * (i+1), i)
// and the reward of each transition is the index of its trajectory.
// Trajectories end in a terminal state.
func newTestDataset(lengths []int, sign float64) *Dataset {
	d := New(2, 1, 0)
	i := 0
	for traj, l := range lengths {
		for j := 0; j < l; j++ {
			obs := []float64{sign * float64(i+1), float64(i)}
			d.Observations = append(d.Observations, obs...)
			d.NextObservations = append(d.NextObservations, obs...)
			d.Actions = append(d.Actions, float64(j))
			d.Rewards = append(d.Rewards, float64(traj))
			d.Terminals = append(d.Terminals, j == l-1)
			d.Timeouts = append(d.Timeouts, false)
			i++
		}
	}
	return d
}

func TestTrajectories(t *testing.T) {
	d := newTestDataset([]int{3, 2}, 1)
	d.Terminals[d.Len()-1] = false

	trajs := d.Trajectories()
	require.Len(t, trajs, 2)
	assert.Equal(t, Trajectory{0, 3}, trajs[0])
	assert.Equal(t, Trajectory{3, 5}, trajs[1])

	// Timeouts also end trajectories
	d.Timeouts[0] = true
	assert.Len(t, d.Trajectories(), 3)

	assert.Equal(t, []float64{0, 0, 2}, d.Returns())
}

func TestSubsetConcat(t *testing.T) {
	d := newTestDataset([]int{4}, 1)

	sub := d.Subset([]int{3, 1})
	require.NoError(t, sub.Validate())
	assert.Equal(t, []float64{4, 3, 2, 1}, sub.Observations)
	assert.Equal(t, []bool{true, false}, sub.Terminals)

	// The subset holds copies
	sub.Observations[0] = -1
	assert.Equal(t, 4.0, d.Observation(3)[0])

	concat, err := d.Concat(sub)
	require.NoError(t, err)
	assert.Equal(t, 6, concat.Len())
	require.NoError(t, concat.Validate())

	_, err = d.Concat(New(3, 1, 0))
	assert.Error(t, err)
}

func TestTransition(t *testing.T) {
	d := newTestDataset([]int{2}, 1)

	first := d.Transition(0)
	assert.Equal(t, 1.0, first.Discount)
	assert.False(t, first.Terminal)

	last := d.Transition(1)
	assert.Equal(t, 0.0, last.Discount)
	assert.True(t, last.Terminal)

	e := New(2, 1, 0)
	require.NoError(t, e.Add(last))
	assert.Equal(t, d.Observation(1), e.Observation(0))

	wrong := New(3, 1, 0)
	assert.Error(t, wrong.Add(last))
	assert.Equal(t, 0, wrong.Len())
}

func TestSaveLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	d := newTestDataset([]int{3, 4}, 1)
	d.Timeouts[2] = true
	require.NoError(t, d.Save(filepath.Join(dir, "test")))

	loaded, err := Load(dir, "test")
	require.NoError(t, err)
	assert.Equal(t, d, loaded)
}

// writeBoolNpy writes flags in the layout numpy uses for bool arrays
func writeBoolNpy(t *testing.T, path string, flags []bool) {
	header := fmt.Sprintf("{'descr': '|b1', 'fortran_order': False, "+
		"'shape': (%d,), }", len(flags))
	header += strings.Repeat(" ", 63-(10+len(header))%64) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian,
		uint16(len(header))))
	buf.WriteString(header)
	for _, f := range flags {
		if f {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadBoolNpy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminals.npy")
	flags := []bool{true, false, true, true}
	writeBoolNpy(t, path, flags)

	dense, err := readNpy(path)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, []int(dense.Shape()))
	assert.Equal(t, flags, dense.Data())

	// Terminals and timeouts of numpy datasets survive loading
	dir := t.TempDir()
	d := newTestDataset([]int{2, 2}, 1)
	require.NoError(t, d.Save(filepath.Join(dir, "numpy")))
	writeBoolNpy(t, filepath.Join(dir, "numpy", TerminalsField+".npy"),
		[]bool{false, true, false, false})
	writeBoolNpy(t, filepath.Join(dir, "numpy", TimeoutsField+".npy"),
		[]bool{false, false, false, true})

	loaded, err := Load(dir, "numpy")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, false}, loaded.Terminals)
	assert.Equal(t, []bool{false, false, false, true}, loaded.Timeouts)
	assert.Len(t, loaded.Trajectories(), 2)
}

func TestLoadConvertsTypes(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	d := newTestDataset([]int{2, 2}, 1)
	require.NoError(t, d.Save(dir))

	// Overwrite rewards with a float32 column vector and terminals with
	// float64 values
	rewards := tensor.New(tensor.WithShape(4, 1),
		tensor.WithBacking([]float32{0, 0, 1, 1}))
	require.NoError(t, writeNpy(filepath.Join(dir, "rewards.npy"), rewards))
	terminals := tensor.New(tensor.WithShape(4),
		tensor.WithBacking([]float64{0, 1, 0, 1}))
	require.NoError(t, writeNpy(filepath.Join(dir, "terminals.npy"),
		terminals))

	loaded, err := Load(filepath.Dir(dir), filepath.Base(dir))
	require.NoError(t, err)
	assert.Equal(t, d.Rewards, loaded.Rewards)
	assert.Equal(t, d.Terminals, loaded.Terminals)
}

func TestLoadErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	d := newTestDataset([]int{2}, 1)

	t.Run("MissingField", func(t *testing.T) {
		path := filepath.Join(dir, "missing")
		require.NoError(t, d.Save(path))
		require.NoError(t, os.Remove(filepath.Join(path, "timeouts.npy")))

		_, err := Load(dir, "missing")
		assert.Error(t, err)
	})

	t.Run("WrongShape", func(t *testing.T) {
		path := filepath.Join(dir, "shape")
		require.NoError(t, d.Save(path))
		rewards := tensor.New(tensor.WithShape(3),
			tensor.WithBacking([]float64{0, 0, 0}))
		require.NoError(t, writeNpy(filepath.Join(path, "rewards.npy"),
			rewards))

		_, err := Load(dir, "shape")
		assert.Error(t, err)
	})
}

func TestQuotas(t *testing.T) {
	n1, n2 := Quotas(1000, 0.01)
	assert.Equal(t, 10, n1)
	assert.Equal(t, 990, n2)

	n1, n2 = Quotas(3, 0.5)
	assert.Equal(t, 3, n1+n2)
}

func TestMixKeepTraj(t *testing.T) {
	d1 := newTestDataset([]int{10, 10, 10}, 1)
	d2 := newTestDataset([]int{7, 7, 7, 7, 7}, -1)
	rng := rand.New(rand.NewSource(1))

	mixed, err := Mix(d1, d2, 30, 0.5, true, rng)
	require.NoError(t, err)
	require.NoError(t, mixed.Validate())
	assert.Equal(t, 30, mixed.Len())

	// d1 has positive and d2 negative first observation features
	from1 := 0
	for i := 0; i < mixed.Len(); i++ {
		if mixed.Observation(i)[0] > 0 {
			from1++
		}
	}
	assert.Equal(t, 15, from1)

	// 15 = 10 + 5 from d1 and 15 = 7 + 7 + 1 from d2
	var lengths []int
	timeouts := 0
	for _, traj := range mixed.Trajectories() {
		lengths = append(lengths, traj.Len())
		if mixed.Timeouts[traj.End-1] {
			timeouts++
		}
	}
	assert.Equal(t, []int{10, 5, 7, 7, 1}, lengths)
	assert.Equal(t, 2, timeouts)

	// Trajectories are taken whole, in order
	for _, traj := range mixed.Trajectories() {
		for i := traj.Start + 1; i < traj.End; i++ {
			assert.Equal(t, mixed.Action(i-1)[0]+1, mixed.Action(i)[0])
		}
	}
}

func TestMixUniform(t *testing.T) {
	d1 := newTestDataset([]int{50}, 1)
	d2 := newTestDataset([]int{50}, -1)
	rng := rand.New(rand.NewSource(2))

	mixed, err := Mix(d1, d2, 40, 0.25, false, rng)
	require.NoError(t, err)
	assert.Equal(t, 40, mixed.Len())

	seen := make(map[float64]bool)
	from1 := 0
	for i := 0; i < mixed.Len(); i++ {
		obs := mixed.Observation(i)[0]
		assert.False(t, seen[obs], "transition sampled twice")
		seen[obs] = true
		if obs > 0 {
			from1++
		}
	}
	assert.Equal(t, 10, from1)
}

func TestMixQuotaExceedsDataset(t *testing.T) {
	d1 := newTestDataset([]int{5}, 1)
	d2 := newTestDataset([]int{100}, -1)
	rng := rand.New(rand.NewSource(3))

	mixed, err := Mix(d1, d2, 20, 0.5, true, rng)
	require.NoError(t, err)
	assert.Equal(t, 15, mixed.Len())

	_, err = Mix(d1, d2, 20, 1.5, true, rng)
	assert.Error(t, err)
	_, err = Mix(d1, d2, 0, 0.5, true, rng)
	assert.Error(t, err)
}

func TestNormalizeReward(t *testing.T) {
	d := newTestDataset([]int{2, 2, 4}, 1)

	// Returns are 0, 2, and 8
	scale := NormalizeReward(d)
	assert.InDelta(t, RewardScale/8, scale, 1e-12)
	returns := d.Returns()
	assert.InDelta(t, RewardScale, floats.Max(returns)-floats.Min(returns),
		1e-9)

	same := newTestDataset([]int{2}, 1)
	assert.Equal(t, 1.0, NormalizeReward(same))
	assert.Equal(t, []float64{0, 0}, same.Rewards)
}

func TestNormalizeObs(t *testing.T) {
	d := newTestDataset([]int{3, 5}, 1)

	mean, std := NormalizeObs(d)
	assert.InDelta(t, 4.5, mean[0], 1e-12)
	assert.InDelta(t, 3.5, mean[1], 1e-12)
	assert.InDelta(t, math.Sqrt(5.25)+ObsStdEps, std[0], 1e-12)

	col := make([]float64, d.Len())
	for i := range col {
		col[i] = d.Observation(i)[0]
	}
	m, s := stat.PopMeanStdDev(col, nil)
	assert.InDelta(t, 0, m, 1e-9)
	assert.InDelta(t, 1, s, 1e-3)
	assert.Equal(t, d.Observations, d.NextObservations)
}

func TestNormalizedScore(t *testing.T) {
	score, ok := NormalizedScore("hopper", 3234.3)
	assert.True(t, ok)
	assert.InDelta(t, 100, score, 1e-9)

	score, ok = NormalizedScore("Walker2d", 1.629008)
	assert.True(t, ok)
	assert.InDelta(t, 0, score, 1e-9)

	_, ok = NormalizedScore("pendulum", 0)
	assert.False(t, ok)
}

func TestCollect(t *testing.T) {
	e, _, err := envconfig.CreatePendulum(10, 1, 0.99)
	require.NoError(t, err)

	actor := NewUniformActor(e.ActionSpec(), 1)
	d, err := Collect(e, actor, 25)
	require.NoError(t, err)
	require.NoError(t, d.Validate())
	assert.Equal(t, 25, d.Len())

	// Episodes time out after 10 steps
	var lengths []int
	for _, traj := range d.Trajectories() {
		lengths = append(lengths, traj.Len())
	}
	assert.Equal(t, []int{10, 10, 5}, lengths)
	assert.True(t, d.Timeouts[d.Len()-1])

	for _, a := range d.Actions {
		assert.True(t, a >= -1 && a <= 1)
	}
}

func TestMixedMujoco(t *testing.T) {
	dir := t.TempDir()
	for i, quality := range []string{Random, Expert} {
		e, _, err := envconfig.CreatePendulum(envconfig.PendulumCutoff,
			uint64(i), envconfig.Discount)
		require.NoError(t, err)
		d, err := Collect(e, NewUniformActor(e.ActionSpec(), uint64(i)), 500)
		require.NoError(t, err)
		require.NoError(t, d.Save(filepath.Join(dir,
			DatasetName(envconfig.Pendulum, quality))))
	}

	cfg := MixConfig{
		Agent:           envconfig.Pendulum,
		Quality1:        Expert,
		Quality2:        Random,
		Ratio:           0.1,
		NumData:         600,
		KeepTraj:        true,
		NormalizeObs:    true,
		NormalizeReward: true,
		DatasetDir:      dir,
	}
	e, d, err := MixedMujoco(cfg, 1, zap.NewNop())
	require.NoError(t, err)
	// 60 expert transitions and all 500 random transitions
	assert.Equal(t, 560, d.Len())
	assert.IsType(t, &wrappers.NormalizeObs{}, e)

	cfg.Quality1 = "perfect"
	_, _, err = MixedMujoco(cfg, 1, nil)
	assert.Error(t, err)
}
