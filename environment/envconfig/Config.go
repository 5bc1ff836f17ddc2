// Package envconfig creates the evaluation environments of the D4RL
// agents with default physical parameters and tasks.
//
// The pendulum is always available. The MuJoCo environments are backed
// by Python through cgo and are registered by importing package
// environment/gym, so that packages creating environments build
// without Python.
package envconfig

import (
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/environment/classiccontrol/pendulum"
	ts "github.com/samuelfneumann/offlinerl/timestep"
)

// Agent names for which an environment can be created
const (
	Hopper      string = "hopper"
	HalfCheetah string = "halfcheetah"
	Walker2d    string = "walker2d"
	Pendulum    string = "pendulum"
)

// Defaults used when creating environments
const (
	Discount       float64 = 0.99
	PendulumCutoff int     = 200
)

// Factory creates a seeded environment and returns its first timestep
type Factory func(seed uint64) (env.Environment, ts.TimeStep, error)

var (
	factories = map[string]Factory{
		Pendulum: func(seed uint64) (env.Environment, ts.TimeStep, error) {
			return CreatePendulum(PendulumCutoff, seed, Discount)
		},
	}
	factoriesMu sync.RWMutex
)

// Register sets the Factory used to create the environment of agent
func Register(agent string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[strings.ToLower(agent)] = f
}

// Agents returns the agent names for which datasets exist
func Agents() []string {
	return []string{Hopper, HalfCheetah, Walker2d, Pendulum}
}

// Valid returns whether agent names a known agent. The environment of a
// valid agent may still need to be registered before it is created.
func Valid(agent string) bool {
	agent = strings.ToLower(agent)
	for _, a := range Agents() {
		if a == agent {
			return true
		}
	}
	return false
}

// Create returns the environment which the datasets of agent were
// collected in, as well as the first timestep of the environment.
func Create(agent string, seed uint64) (env.Environment, ts.TimeStep, error) {
	agent = strings.ToLower(agent)
	if !Valid(agent) {
		return nil, ts.TimeStep{}, fmt.Errorf("create: cannot create "+
			"environment for agent %v, no such environment", agent)
	}

	factoriesMu.RLock()
	f, ok := factories[agent]
	factoriesMu.RUnlock()
	if !ok {
		return nil, ts.TimeStep{}, fmt.Errorf("create: no environment "+
			"registered for agent %v, import package environment/gym to "+
			"register the MuJoCo environments", agent)
	}

	e, step, err := f(seed)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}
	return e, step, nil
}

// CreatePendulum is a factory for creating the continuous-action
// Pendulum environment with default physical parameters and the
// SwingUp task.
func CreatePendulum(cutoff int, seed uint64, discount float64) (env.Environment,
	ts.TimeStep, error) {
	angle := r1.Interval{Min: -pendulum.AngleBound, Max: pendulum.AngleBound}
	speed := r1.Interval{Min: -1.0, Max: 1.0}

	s := env.NewUniformStarter([]r1.Interval{angle, speed}, seed)
	task := pendulum.NewSwingUp(s, cutoff)

	p, step, err := pendulum.NewContinuous(task, discount)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createPendulum: %v", err)
	}
	return p, step, nil
}
