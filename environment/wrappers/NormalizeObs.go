// Package wrappers implements environment wrappers which alter the
// observations or rewards of an embedded environment
package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/offlinerl/environment"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// NormalizeObs standardizes the observations of an environment with
// a fixed mean and standard deviation: obs <- (obs - mean) / std.
//
// Offline agents trained on a dataset with standardized observations
// must act in an environment whose observations are standardized with
// the dataset statistics, which is what this wrapper is for.
type NormalizeObs struct {
	env.Environment

	mean *mat.VecDense
	std  *mat.VecDense

	currentTimeStep ts.TimeStep
}

// NewNormalizeObs returns a new NormalizeObs environment wrapper
func NewNormalizeObs(e env.Environment, mean, std []float64) (*NormalizeObs,
	error) {
	features := e.ObservationSpec().Dim()
	if len(mean) != features || len(std) != features {
		return nil, fmt.Errorf("newNormalizeObs: statistics must have %v "+
			"features \n\thave(mean: %v, std: %v)", features, len(mean),
			len(std))
	}
	for i, s := range std {
		if s <= 0 {
			return nil, fmt.Errorf("newNormalizeObs: standard deviation "+
				"of feature %v is %v <= 0", i, s)
		}
	}

	m := make([]float64, features)
	copy(m, mean)
	s := make([]float64, features)
	copy(s, std)

	return &NormalizeObs{
		Environment: e,
		mean:        mat.NewVecDense(features, m),
		std:         mat.NewVecDense(features, s),
	}, nil
}

// Reset resets the environment to some starting state
func (n *NormalizeObs) Reset() (ts.TimeStep, error) {
	step, err := n.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	step.Observation = n.normalize(step.Observation)
	n.currentTimeStep = step

	return step, nil
}

// Step takes one environmental step given some action
func (n *NormalizeObs) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := n.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}

	step.Observation = n.normalize(step.Observation)
	n.currentTimeStep = step

	return step, done, nil
}

// CurrentTimeStep returns the current time step in the environment
func (n *NormalizeObs) CurrentTimeStep() ts.TimeStep {
	return n.currentTimeStep
}

// Seed seeds the embedded environment if it can be seeded
func (n *NormalizeObs) Seed(seed uint64) {
	if s, ok := n.Environment.(env.Seeder); ok {
		s.Seed(seed)
	}
}

// Close closes the embedded environment if needed
func (n *NormalizeObs) Close() error {
	if c, ok := n.Environment.(env.Closer); ok {
		return c.Close()
	}
	return nil
}

// normalize returns a standardized copy of obs
func (n *NormalizeObs) normalize(obs *mat.VecDense) *mat.VecDense {
	normalized := mat.NewVecDense(obs.Len(), nil)
	normalized.SubVec(obs, n.mean)
	normalized.DivElemVec(normalized, n.std)
	return normalized
}
