// Package solver describes the Gorgonia solvers that train networks as
// JSON serializable configurations, so that agent configuration files
// can choose the optimizer of each network.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"

	G "gorgonia.org/gorgonia"
)

// Type names an optimization algorithm
type Type string

// Known solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// configTypes maps each solver Type to its concrete Config type
var configTypes = map[Type]reflect.Type{
	Adam:    reflect.TypeOf(AdamConfig{}),
	RMSProp: reflect.TypeOf(RMSPropConfig{}),
	Vanilla: reflect.TypeOf(VanillaConfig{}),
}

// Config describes the hyperparameters of a solver
type Config interface {
	// Create returns a Gorgonia Solver with no cached state
	Create() G.Solver

	// Validate returns an error if the hyperparameters are invalid
	Validate() error

	Type() Type
}

// Solver is a typed solver Config. It is JSON serialized as
//
//	{"Type": "Adam", "Config": {...}}
//
// Adaptive solvers cache statistics per parameter, so each network
// should be stepped by its own Gorgonia Solver returned by New.
type Solver struct {
	Type
	Config
}

// newSolver validates c and returns it as a Solver
func newSolver(c Config) (*Solver, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newSolver: %v", err)
	}
	return &Solver{Type: c.Type(), Config: c}, nil
}

// New returns a fresh Gorgonia Solver configured by s
func (s *Solver) New() G.Solver {
	return s.Config.Create()
}

// String implements the fmt.Stringer interface
func (s *Solver) String() string {
	return fmt.Sprintf("%v%+v", s.Type, s.Config)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	var fields struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	ty, ok := configTypes[fields.Type]
	if !ok {
		return fmt.Errorf("unmarshalJSON: unknown solver type %q",
			fields.Type)
	}
	value := reflect.New(ty)
	if err := json.Unmarshal(fields.Config, value.Interface()); err != nil {
		return fmt.Errorf("unmarshalJSON: could not decode %v config: %v",
			fields.Type, err)
	}

	c := value.Elem().Interface().(Config)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	s.Type = fields.Type
	s.Config = c
	return nil
}

// common are the hyperparameters shared by every solver. Gorgonia
// divides gradients by Batch before each step, so losses which are
// already averaged over a batch should use a Batch of 1.
type common struct {
	StepSize float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

func (c common) validate() error {
	if c.StepSize <= 0 {
		return fmt.Errorf("step size must be positive but got %v", c.StepSize)
	}
	if c.Batch < 1 {
		return fmt.Errorf("batch must be positive but got %v", c.Batch)
	}
	return nil
}

func (c common) opts() []G.SolverOpt {
	opts := []G.SolverOpt{
		G.WithLearnRate(c.StepSize),
		G.WithBatchSize(float64(c.Batch)),
	}
	if c.Clip > 0 {
		opts = append(opts, G.WithClip(c.Clip))
	}
	return opts
}
