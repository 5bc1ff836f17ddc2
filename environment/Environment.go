// Package environment defines the interfaces implemented by the
// environments that agents are evaluated in, along with the pieces
// used to assemble them.
package environment

import (
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// Starter samples starting states
type Starter interface {
	Start() *mat.VecDense
}

// Ender decides whether an episode ends at a TimeStep. When it does,
// End marks the TimeStep as the last in its episode and returns true.
type Ender interface {
	End(*ts.TimeStep) bool
}

// Task defines the starting states, rewards, and episode termination of
// an environment
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState mat.Vector) float64
	RewardSpec() Spec
}

// Environment is an episodic environment with continuous observations
// and actions
type Environment interface {
	// Reset starts a new episode
	Reset() (ts.TimeStep, error)

	// Step takes action and returns the next TimeStep along with
	// whether the episode ended
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)

	CurrentTimeStep() ts.TimeStep

	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Seeder is an Environment whose randomness can be re-seeded so that
// subsequent episodes are reproducible
type Seeder interface {
	Seed(seed uint64)
}

// Closer is an Environment holding resources that must be released
type Closer interface {
	Close() error
}
