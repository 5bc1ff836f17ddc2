// Package gym wraps the OpenAI Gym MuJoCo environments that the D4RL
// datasets were collected in, using the GoGym bindings from
// https://github.com/samuelfneumann/GoGym.
package gym

import (
	"fmt"

	"github.com/samuelfneumann/gogym"
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/environment/envconfig"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// EpisodeSteps is the step limit of the MuJoCo environments. Episodes
// which Gym ends at this limit are reported as timeouts.
const EpisodeSteps = 1000

// mujocoNames maps D4RL agent names to the Gym environments their
// datasets were collected in
var mujocoNames = map[string]string{
	envconfig.Hopper:      "Hopper-v3",
	envconfig.HalfCheetah: "HalfCheetah-v3",
	envconfig.Walker2d:    "Walker2d-v3",
}

func init() {
	for agent, name := range mujocoNames {
		name := name
		envconfig.Register(agent, func(seed uint64) (env.Environment,
			ts.TimeStep, error) {
			return New(name, envconfig.Discount, seed)
		})
	}
}

// GymEnv is an environment.Environment backed by a Gym environment
// with box observation and action spaces
type GymEnv struct {
	gymEnv gogym.Environment

	name     string
	discount float64
	current  ts.TimeStep
	seedErr  error

	observationSpec env.Spec
	actionSpec      env.Spec
}

// New makes the Gym environment with the given name, seeds it, and
// starts its first episode.
func New(name string, discount float64, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	e, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not make %v: %v",
			name, err)
	}

	obsSpec, err := boxSpec(env.Observation, e.ObservationSpace())
	if err != nil {
		e.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v: %v", name, err)
	}
	actSpec, err := boxSpec(env.Action, e.ActionSpace())
	if err != nil {
		e.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v: %v", name, err)
	}

	g := &GymEnv{
		gymEnv:          e,
		name:            name,
		discount:        discount,
		observationSpec: obsSpec,
		actionSpec:      actSpec,
	}
	g.Seed(seed)

	step, err := g.Reset()
	if err != nil {
		e.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return g, step, nil
}

// Seed seeds the Gym environment. A failure to seed is reported by the
// next call to Reset.
func (g *GymEnv) Seed(seed uint64) {
	_, g.seedErr = g.gymEnv.Seed(int(seed))
}

// Reset starts a new episode
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	if err := g.seedErr; err != nil {
		g.seedErr = nil
		return ts.TimeStep{}, fmt.Errorf("reset: %v: could not seed: %v",
			g.name, err)
	}

	obs, err := g.gymEnv.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v: %v", g.name, err)
	}

	g.current = ts.New(ts.First, 0, g.discount, obs, 0)
	return g.current, nil
}

// Step takes action a in the environment. Episodes which Gym ends at
// EpisodeSteps are reported as timeouts, all others as reaching a
// terminal state.
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != g.actionSpec.Dim() {
		return ts.TimeStep{}, true, fmt.Errorf("step: %v: actions should "+
			"be %v-dimensional", g.name, g.actionSpec.Dim())
	}

	obs, reward, done, err := g.gymEnv.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: %v: %v", g.name, err)
	}

	next := ts.New(ts.Mid, reward, g.discount, obs, g.current.Number+1)
	if done {
		next.StepType = ts.Last
		next.SetEnd(endOf(next.Number))
	}
	g.current = next
	return next, done, nil
}

func (g *GymEnv) CurrentTimeStep() ts.TimeStep { return g.current }

func (g *GymEnv) ObservationSpec() env.Spec { return g.observationSpec }

func (g *GymEnv) ActionSpec() env.Spec { return g.actionSpec }

func (g *GymEnv) DiscountSpec() env.Spec {
	return env.NewSpec(env.Discount, []float64{g.discount},
		[]float64{g.discount})
}

// Close releases the Gym environment
func (g *GymEnv) Close() error {
	g.gymEnv.Close()
	return nil
}

// boxSpec converts a GoGym box space to a Spec of the given kind
func boxSpec(kind env.Kind, space gogym.Space) (env.Spec, error) {
	if _, ok := space.(*gogym.BoxSpace); !ok {
		return env.Spec{}, fmt.Errorf("boxSpec: %v space should be a box, "+
			"got %T", kind, space)
	}
	low, high := space.Low()[0], space.High()[0]
	return env.NewSpec(kind, low.RawVector().Data, high.RawVector().Data), nil
}

// endOf returns how an episode which Gym ended after steps steps ended
func endOf(steps int) ts.EndType {
	if steps >= EpisodeSteps {
		return ts.Timeout
	}
	return ts.TerminalStateReached
}
