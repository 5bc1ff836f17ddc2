package inac

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/agent/nonlinear/continuous/policy"
	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/initwfn"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/solver"
)

func init() {
	// Register Config type so that it can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(agent.InACClippedGaussianMLP, Config{})
}

// Default bounds of the importance weights of the actor loss
const (
	DefaultClipMin float64 = 1e-8
	DefaultClipMax float64 = 1e4
)

// Config implements a configuration of an InAC agent whose actor and
// behaviour policies are ClippedGaussianMLPs. Every network has the
// hidden layers described by Hidden, Biases, and Activations.
type Config struct {
	// Neural nets
	Hidden      []int
	Biases      []bool // nil for biases in all layers
	Activations []*network.Activation
	InitWFn     *initwfn.InitWFn

	// Solvers
	ActorSolver     *solver.Solver
	BehaviourSolver *solver.Solver
	QSolver         *solver.Solver
	VSolver         *solver.Solver

	// Temperature of the in-sample softmax
	Temperature float64
	Discount    float64

	// Polyak averaging constant of the target critic
	Tau float64

	BatchSize    int
	EnsembleSize int

	LogStdMin float64
	LogStdMax float64

	// Bounds of the importance weights of the actor loss
	ClipMin float64
	ClipMax float64
}

// DefaultConfig returns a Config with ReLU networks initialized by
// Glorot Uniform, Adam solvers with learning rate lr, an ensemble of
// two critics, and default log standard deviation and weight bounds.
func DefaultConfig(hidden []int, lr, temperature, discount, tau float64,
	batchSize int) (Config, error) {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %v", err)
	}

	// The losses are averaged over the batch
	solvers := make([]*solver.Solver, 4)
	for i := range solvers {
		if solvers[i], err = solver.NewDefaultAdam(lr, 1); err != nil {
			return Config{}, fmt.Errorf("defaultConfig: %v", err)
		}
	}

	return Config{
		Hidden:      append([]int{}, hidden...),
		Activations: network.ReLUs(len(hidden)),
		InitWFn:     init,

		ActorSolver:     solvers[0],
		BehaviourSolver: solvers[1],
		QSolver:         solvers[2],
		VSolver:         solvers[3],

		Temperature: temperature,
		Discount:    discount,
		Tau:         tau,

		BatchSize:    batchSize,
		EnsembleSize: 2,

		LogStdMin: policy.LogStdMin,
		LogStdMax: policy.LogStdMax,

		ClipMin: DefaultClipMin,
		ClipMax: DefaultClipMax,
	}, nil
}

// biases returns whether each hidden layer has a bias unit
func (c Config) biases() []bool {
	if c.Biases != nil {
		return c.Biases
	}
	biases := make([]bool, len(c.Hidden))
	for i := range biases {
		biases[i] = true
	}
	return biases
}

// CreateAgent creates an InAC agent
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	return New(e, c, seed)
}

// ValidAgent returns whether the argument agent is valid for the
// Config
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*InAC)
	return ok
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if len(c.Hidden) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations "+
			"\n\twant(%v) \n\thave(%v)", len(c.Hidden), len(c.Activations))
	}
	if c.Biases != nil && len(c.Hidden) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases "+
			"\n\twant(%v) \n\thave(%v)", len(c.Hidden), len(c.Biases))
	}
	for _, h := range c.Hidden {
		if h < 1 {
			return fmt.Errorf("validate: hidden layers must have at least "+
				"one unit but got %v", c.Hidden)
		}
	}

	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer")
	}
	solvers := map[string]*solver.Solver{
		"actor":     c.ActorSolver,
		"behaviour": c.BehaviourSolver,
		"q":         c.QSolver,
		"v":         c.VSolver,
	}
	for name, s := range solvers {
		if s == nil || s.Config == nil {
			return fmt.Errorf("validate: no %v solver", name)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("validate: %v solver: %v", name, err)
		}
	}

	if c.Temperature <= 0 {
		return fmt.Errorf("validate: temperature must be positive but "+
			"got %v", c.Temperature)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] but got %v",
			c.Discount)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] but got %v",
			c.Tau)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive but got %v",
			c.BatchSize)
	}
	if c.EnsembleSize < 1 {
		return fmt.Errorf("validate: ensemble size must be positive but "+
			"got %v", c.EnsembleSize)
	}
	if c.LogStdMin > c.LogStdMax {
		return fmt.Errorf("validate: minimum log standard deviation %v > "+
			"maximum %v", c.LogStdMin, c.LogStdMax)
	}
	if c.ClipMin <= 0 || c.ClipMin > c.ClipMax {
		return fmt.Errorf("validate: invalid weight bounds [%v, %v]",
			c.ClipMin, c.ClipMax)
	}
	return nil
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.InACClippedGaussianMLP
}
