package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// AdamConfig configures the Adam solver
type AdamConfig struct {
	StepSize float64
	Epsilon  float64
	Beta1    float64
	Beta2    float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewDefaultAdam returns an Adam Solver with β = (0.9, 0.999),
// ε = 1e-8, and no gradient clipping
func NewDefaultAdam(stepSize float64, batchSize int) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999, batchSize, -1.0)
}

// NewAdam returns an Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2 float64, batchSize int,
	clip float64) (*Solver, error) {
	return newSolver(AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
		Batch:    batchSize,
		Clip:     clip,
	})
}

// Create implements the Config interface
func (a AdamConfig) Create() G.Solver {
	opts := append(a.common().opts(),
		G.WithEps(a.Epsilon),
		G.WithBeta1(a.Beta1),
		G.WithBeta2(a.Beta2),
	)
	return G.NewAdamSolver(opts...)
}

// Validate implements the Config interface
func (a AdamConfig) Validate() error {
	if err := a.common().validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	for _, beta := range []float64{a.Beta1, a.Beta2} {
		if beta < 0 || beta >= 1 {
			return fmt.Errorf("validate: betas must be in [0, 1) but got "+
				"(%v, %v)", a.Beta1, a.Beta2)
		}
	}
	if a.Epsilon <= 0 {
		return fmt.Errorf("validate: epsilon must be positive but got %v",
			a.Epsilon)
	}
	return nil
}

// Type implements the Config interface
func (a AdamConfig) Type() Type { return Adam }

func (a AdamConfig) common() common {
	return common{a.StepSize, a.Batch, a.Clip}
}

// RMSPropConfig configures the RMSProp solver
type RMSPropConfig struct {
	StepSize float64
	Epsilon  float64
	Rho      float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewRMSProp returns an RMSProp Solver
func NewRMSProp(stepSize, epsilon, rho float64, batchSize int,
	clip float64) (*Solver, error) {
	return newSolver(RMSPropConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Rho:      rho,
		Batch:    batchSize,
		Clip:     clip,
	})
}

// Create implements the Config interface
func (r RMSPropConfig) Create() G.Solver {
	opts := append(r.common().opts(), G.WithEps(r.Epsilon), G.WithRho(r.Rho))
	return G.NewRMSPropSolver(opts...)
}

// Validate implements the Config interface
func (r RMSPropConfig) Validate() error {
	if err := r.common().validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if r.Rho < 0 || r.Rho >= 1 {
		return fmt.Errorf("validate: rho must be in [0, 1) but got %v", r.Rho)
	}
	if r.Epsilon <= 0 {
		return fmt.Errorf("validate: epsilon must be positive but got %v",
			r.Epsilon)
	}
	return nil
}

// Type implements the Config interface
func (r RMSPropConfig) Type() Type { return RMSProp }

func (r RMSPropConfig) common() common {
	return common{r.StepSize, r.Batch, r.Clip}
}

// VanillaConfig configures stochastic gradient descent
type VanillaConfig struct {
	StepSize float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewVanilla returns a stochastic gradient descent Solver
func NewVanilla(stepSize float64, batchSize int,
	clip float64) (*Solver, error) {
	return newSolver(VanillaConfig{
		StepSize: stepSize,
		Batch:    batchSize,
		Clip:     clip,
	})
}

// Create implements the Config interface
func (v VanillaConfig) Create() G.Solver {
	return G.NewVanillaSolver(v.common().opts()...)
}

// Validate implements the Config interface
func (v VanillaConfig) Validate() error {
	if err := v.common().validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// Type implements the Config interface
func (v VanillaConfig) Type() Type { return Vanilla }

func (v VanillaConfig) common() common {
	return common{v.StepSize, v.Batch, v.Clip}
}
