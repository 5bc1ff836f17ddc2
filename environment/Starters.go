package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"

	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// StepLimit is an Ender which ends episodes with a timeout once they
// reach the given number of steps
type StepLimit int

// End marks t as the last step of a timed-out episode if t has reached
// the step limit
func (s StepLimit) End(t *ts.TimeStep) bool {
	if t.Number < int(s) {
		return false
	}
	t.StepType = ts.Last
	t.SetEnd(ts.Timeout)
	return true
}

// UniformStarter is a Starter which draws feature i of each starting
// state uniformly from bounds[i]
type UniformStarter struct {
	bounds []r1.Interval
	dist   *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter seeded with seed
func NewUniformStarter(bounds []r1.Interval, seed uint64) *UniformStarter {
	u := &UniformStarter{bounds: bounds}
	u.Seed(seed)
	return u
}

// Start samples a starting state
func (u *UniformStarter) Start() *mat.VecDense {
	return mat.NewVecDense(len(u.bounds), u.dist.Rand(nil))
}

// Seed restarts the starting state distribution from seed
func (u *UniformStarter) Seed(seed uint64) {
	u.dist = distmv.NewUniform(u.bounds, rand.NewSource(seed))
}
