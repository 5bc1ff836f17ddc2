package d4rl

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	env "github.com/samuelfneumann/offlinerl/environment"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// Actor selects actions in an environment
type Actor interface {
	SelectAction(t ts.TimeStep) *mat.VecDense
}

// Collect runs actor in e for the given number of steps and returns
// the transitions as a Dataset. If the final episode has not ended
// after steps transitions, its final transition is marked as a timeout.
func Collect(e env.Environment, actor Actor, steps int) (*Dataset, error) {
	obsDim := e.ObservationSpec().Dim()
	actDim := e.ActionSpec().Dim()
	d := New(obsDim, actDim, steps)

	step, err := e.Reset()
	if err != nil {
		return nil, fmt.Errorf("collect: %v", err)
	}

	for i := 0; i < steps; i++ {
		action := actor.SelectAction(step)
		next, done, err := e.Step(action)
		if err != nil {
			return nil, fmt.Errorf("collect: step %v: %v", i, err)
		}

		if err := d.Add(ts.NewTransition(step, action, next)); err != nil {
			return nil, fmt.Errorf("collect: %v", err)
		}

		if done {
			if step, err = e.Reset(); err != nil {
				return nil, fmt.Errorf("collect: %v", err)
			}
		} else {
			step = next
		}
	}

	if last := d.Len() - 1; last >= 0 && !d.Terminals[last] {
		d.Timeouts[last] = true
	}
	return d, nil
}

// UniformActor selects actions uniformly at random within the bounds
// of an action spec
type UniformActor struct {
	dists []distuv.Uniform
}

// NewUniformActor returns a new UniformActor for the action spec
func NewUniformActor(spec env.Spec, seed uint64) *UniformActor {
	src := rand.NewSource(seed)
	dists := make([]distuv.Uniform, spec.Dim())
	for i := range dists {
		dists[i] = distuv.Uniform{
			Min: spec.LowerBound.AtVec(i),
			Max: spec.UpperBound.AtVec(i),
			Src: src,
		}
	}
	return &UniformActor{dists}
}

// SelectAction samples a random action
func (u *UniformActor) SelectAction(ts.TimeStep) *mat.VecDense {
	action := make([]float64, len(u.dists))
	for i := range u.dists {
		action[i] = u.dists[i].Rand()
	}
	return mat.NewVecDense(len(action), action)
}
