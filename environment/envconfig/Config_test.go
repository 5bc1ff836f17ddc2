package envconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	env "github.com/samuelfneumann/offlinerl/environment"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

func TestCreatePendulum(t *testing.T) {
	e, step, err := Create("Pendulum", 10)
	require.NoError(t, err)

	assert.True(t, step.First())
	assert.Equal(t, 2, e.ObservationSpec().Dim())
	assert.Equal(t, 1, e.ActionSpec().Dim())
	assert.Equal(t, Discount, e.DiscountSpec().LowerBound.AtVec(0))
}

func TestCreateUnknown(t *testing.T) {
	_, _, err := Create("ant", 10)
	assert.Error(t, err)
}

func TestCreateUnregistered(t *testing.T) {
	_, _, err := Create(Walker2d, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment/gym")
}

func TestRegister(t *testing.T) {
	var seeded uint64
	Register("HalfCheetah", func(seed uint64) (env.Environment, ts.TimeStep,
		error) {
		seeded = seed
		return nil, ts.TimeStep{}, errors.New("no simulator")
	})
	t.Cleanup(func() {
		factoriesMu.Lock()
		delete(factories, HalfCheetah)
		factoriesMu.Unlock()
	})

	_, _, err := Create(HalfCheetah, 7)
	assert.ErrorContains(t, err, "no simulator")
	assert.Equal(t, uint64(7), seeded)
}

func TestValid(t *testing.T) {
	for _, agent := range Agents() {
		assert.True(t, Valid(agent), agent)
	}
	assert.True(t, Valid("Hopper"))
	assert.False(t, Valid("ant"))
}
