// Package d4rl implements loading, mixing, and normalization of
// offline datasets stored in the D4RL format: one .npy file per field
// of the dataset, with one row per transition.
package d4rl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// Dataset implements a fixed dataset of transitions. Observations,
// actions, and next observations are stored in row major order with
// one row per transition.
type Dataset struct {
	Observations     []float64
	Actions          []float64
	NextObservations []float64
	Rewards          []float64
	Terminals        []bool
	Timeouts         []bool

	ObsDim int
	ActDim int
}

// Trajectory denotes the transitions [Start, End) of a Dataset which
// make up a single trajectory
type Trajectory struct {
	Start, End int
}

// Len returns the length of the trajectory
func (t Trajectory) Len() int {
	return t.End - t.Start
}

// New returns a new empty Dataset with capacity for n transitions
func New(obsDim, actDim, n int) *Dataset {
	return &Dataset{
		Observations:     make([]float64, 0, n*obsDim),
		Actions:          make([]float64, 0, n*actDim),
		NextObservations: make([]float64, 0, n*obsDim),
		Rewards:          make([]float64, 0, n),
		Terminals:        make([]bool, 0, n),
		Timeouts:         make([]bool, 0, n),
		ObsDim:           obsDim,
		ActDim:           actDim,
	}
}

// Len returns the number of transitions in the Dataset
func (d *Dataset) Len() int {
	return len(d.Rewards)
}

// Validate returns an error if the fields of the Dataset have
// inconsistent lengths
func (d *Dataset) Validate() error {
	n := d.Len()
	if d.ObsDim < 1 || d.ActDim < 1 {
		return fmt.Errorf("validate: invalid dimensions (observations: %v, "+
			"actions: %v)", d.ObsDim, d.ActDim)
	}

	lengths := []struct {
		name      string
		have, want int
	}{
		{"observations", len(d.Observations), n * d.ObsDim},
		{"actions", len(d.Actions), n * d.ActDim},
		{"next_observations", len(d.NextObservations), n * d.ObsDim},
		{"terminals", len(d.Terminals), n},
		{"timeouts", len(d.Timeouts), n},
	}
	for _, l := range lengths {
		if l.have != l.want {
			return fmt.Errorf("validate: invalid length of %v \n\twant(%v) "+
				"\n\thave(%v)", l.name, l.want, l.have)
		}
	}
	return nil
}

// Observation returns the observation of transition i
func (d *Dataset) Observation(i int) []float64 {
	return d.Observations[i*d.ObsDim : (i+1)*d.ObsDim]
}

// Action returns the action of transition i
func (d *Dataset) Action(i int) []float64 {
	return d.Actions[i*d.ActDim : (i+1)*d.ActDim]
}

// NextObservation returns the next observation of transition i
func (d *Dataset) NextObservation(i int) []float64 {
	return d.NextObservations[i*d.ObsDim : (i+1)*d.ObsDim]
}

// Transition returns a copy of transition i. The discount of the
// transition is 0 if the transition ends in a terminal state and
// 1 otherwise.
func (d *Dataset) Transition(i int) ts.Transition {
	discount := 1.0
	if d.Terminals[i] {
		discount = 0.0
	}

	return ts.Transition{
		State:     mat.NewVecDense(d.ObsDim, clone(d.Observation(i))),
		Action:    mat.NewVecDense(d.ActDim, clone(d.Action(i))),
		Reward:    d.Rewards[i],
		Discount:  discount,
		NextState: mat.NewVecDense(d.ObsDim, clone(d.NextObservation(i))),
		Terminal:  d.Terminals[i],
		Timeout:   d.Timeouts[i],
	}
}

// Add appends a transition to the Dataset
func (d *Dataset) Add(t ts.Transition) error {
	if t.State.Len() != d.ObsDim || t.NextState.Len() != d.ObsDim {
		return fmt.Errorf("add: invalid observation size \n\twant(%v)"+
			"\n\thave(%v)", d.ObsDim, t.State.Len())
	}
	if t.Action.Len() != d.ActDim {
		return fmt.Errorf("add: invalid action size \n\twant(%v)\n\thave(%v)",
			d.ActDim, t.Action.Len())
	}

	d.Observations = append(d.Observations, t.State.RawVector().Data...)
	d.Actions = append(d.Actions, t.Action.RawVector().Data...)
	d.NextObservations = append(d.NextObservations,
		t.NextState.RawVector().Data...)
	d.Rewards = append(d.Rewards, t.Reward)
	d.Terminals = append(d.Terminals, t.Terminal)
	d.Timeouts = append(d.Timeouts, t.Timeout)

	return nil
}

// Trajectories splits the Dataset into trajectories. A trajectory
// ends after every transition which is terminal or timed out. Trailing
// transitions which are not ended make up a final trajectory.
func (d *Dataset) Trajectories() []Trajectory {
	var trajectories []Trajectory

	start := 0
	for i := 0; i < d.Len(); i++ {
		if d.Terminals[i] || d.Timeouts[i] {
			trajectories = append(trajectories, Trajectory{start, i + 1})
			start = i + 1
		}
	}
	if start < d.Len() {
		trajectories = append(trajectories, Trajectory{start, d.Len()})
	}

	return trajectories
}

// Returns returns the undiscounted return of each trajectory in the
// Dataset, in the order returned by Trajectories
func (d *Dataset) Returns() []float64 {
	trajectories := d.Trajectories()
	returns := make([]float64, len(trajectories))
	for i, t := range trajectories {
		for j := t.Start; j < t.End; j++ {
			returns[i] += d.Rewards[j]
		}
	}
	return returns
}

// Subset returns a new Dataset holding copies of the transitions at
// the argument indices, in order
func (d *Dataset) Subset(indices []int) *Dataset {
	subset := New(d.ObsDim, d.ActDim, len(indices))
	for _, i := range indices {
		subset.Observations = append(subset.Observations, d.Observation(i)...)
		subset.Actions = append(subset.Actions, d.Action(i)...)
		subset.NextObservations = append(subset.NextObservations,
			d.NextObservation(i)...)
		subset.Rewards = append(subset.Rewards, d.Rewards[i])
		subset.Terminals = append(subset.Terminals, d.Terminals[i])
		subset.Timeouts = append(subset.Timeouts, d.Timeouts[i])
	}
	return subset
}

// Concat returns a new Dataset holding the transitions of d followed
// by the transitions of each of others
func (d *Dataset) Concat(others ...*Dataset) (*Dataset, error) {
	n := d.Len()
	for i, o := range others {
		if o.ObsDim != d.ObsDim || o.ActDim != d.ActDim {
			return nil, fmt.Errorf("concat: dataset %v has dimensions "+
				"(%v, %v) but want (%v, %v)", i, o.ObsDim, o.ActDim,
				d.ObsDim, d.ActDim)
		}
		n += o.Len()
	}

	concat := New(d.ObsDim, d.ActDim, n)
	for _, o := range append([]*Dataset{d}, others...) {
		concat.Observations = append(concat.Observations, o.Observations...)
		concat.Actions = append(concat.Actions, o.Actions...)
		concat.NextObservations = append(concat.NextObservations,
			o.NextObservations...)
		concat.Rewards = append(concat.Rewards, o.Rewards...)
		concat.Terminals = append(concat.Terminals, o.Terminals...)
		concat.Timeouts = append(concat.Timeouts, o.Timeouts...)
	}
	return concat, nil
}

// clone returns a copy of s
func clone(s []float64) []float64 {
	c := make([]float64, len(s))
	copy(c, s)
	return c
}
