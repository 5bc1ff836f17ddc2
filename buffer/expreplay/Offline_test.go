package expreplay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
	"github.com/samuelfneumann/offlinerl/d4rl"
)

// newDataset returns a dataset of n transitions in which the state of
// transition i is (i, -i), its action is 10i, its reward is i, and
// every third transition is terminal.
func newDataset(n int) *d4rl.Dataset {
	d := d4rl.New(2, 1, n)
	for i := 0; i < n; i++ {
		f := float64(i)
		d.Observations = append(d.Observations, f, -f)
		d.NextObservations = append(d.NextObservations, f+1, -f-1)
		d.Actions = append(d.Actions, 10*f)
		d.Rewards = append(d.Rewards, f)
		d.Terminals = append(d.Terminals, i%3 == 2)
		d.Timeouts = append(d.Timeouts, false)
	}
	return d
}

func TestOfflineSample(t *testing.T) {
	buffer, err := expreplay.NewOffline(newDataset(10), 32, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, buffer.Capacity())
	assert.Equal(t, 2, buffer.FeatureSize())
	assert.Equal(t, 1, buffer.ActionSize())

	b, err := buffer.Sample()
	require.NoError(t, err)
	assert.Equal(t, 32, b.Size)
	require.Len(t, b.State, 64)
	require.Len(t, b.Action, 32)
	require.Len(t, b.NextState, 64)

	// Fields of each sampled transition belong together
	for j := 0; j < b.Size; j++ {
		i := b.Reward[j]
		assert.Equal(t, []float64{i, -i}, b.State[2*j:2*j+2])
		assert.Equal(t, []float64{i + 1, -i - 1}, b.NextState[2*j:2*j+2])
		assert.Equal(t, 10*i, b.Action[j])

		if int(i)%3 == 2 {
			assert.Equal(t, 0.0, b.Discount[j])
		} else {
			assert.Equal(t, 1.0, b.Discount[j])
		}
	}
}

func TestOfflineSeeded(t *testing.T) {
	b1, err := expreplay.NewOffline(newDataset(100), 16, 7)
	require.NoError(t, err)
	b2, err := expreplay.NewOffline(newDataset(100), 16, 7)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s1, err := b1.Sample()
		require.NoError(t, err)
		s2, err := b2.Sample()
		require.NoError(t, err)
		assert.Equal(t, s1, s2)
	}
}

func TestOfflineCopiesDataset(t *testing.T) {
	d := newDataset(1)
	buffer, err := expreplay.NewOffline(d, 1, 1)
	require.NoError(t, err)

	d.Rewards[0] = 100
	b, err := buffer.SampleN(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, b.Reward)
}

func TestShuffleSelector(t *testing.T) {
	buffer, err := expreplay.NewOfflineWithSelector(newDataset(8), 4,
		expreplay.NewShuffleSelector(3))
	require.NoError(t, err)

	seen := make(map[float64]int)
	for i := 0; i < 2; i++ {
		b, err := buffer.Sample()
		require.NoError(t, err)
		for _, r := range b.Reward {
			seen[r]++
		}
	}
	assert.Len(t, seen, 8)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestOfflineErrors(t *testing.T) {
	_, err := expreplay.NewOffline(newDataset(4), 0, 1)
	assert.True(t, expreplay.IsInvalidBatchSize(err))

	buffer, err := expreplay.NewOffline(newDataset(0), 4, 1)
	require.NoError(t, err)
	_, err = buffer.Sample()
	assert.True(t, expreplay.IsEmptyBuffer(err))

	buffer, err = expreplay.NewOffline(newDataset(4), 4, 1)
	require.NoError(t, err)
	_, err = buffer.SampleN(-1)
	assert.True(t, expreplay.IsInvalidBatchSize(err))
	assert.False(t, expreplay.IsEmptyBuffer(err))

	var sampleErr *expreplay.SampleError
	require.ErrorAs(t, err, &sampleErr)
	assert.Equal(t, -1, sampleErr.Size)
	assert.Equal(t, 4, sampleErr.Capacity)
}

func TestNewSelector(t *testing.T) {
	for _, name := range []string{"uniform", "Shuffle"} {
		s, err := expreplay.NewSelector(name, 1)
		require.NoError(t, err, name)

		buffer, err := expreplay.NewOfflineWithSelector(newDataset(8), 4, s)
		require.NoError(t, err)
		_, err = buffer.Sample()
		assert.NoError(t, err, name)
	}

	_, err := expreplay.NewSelector("prioritized", 1)
	assert.Error(t, err)
}
