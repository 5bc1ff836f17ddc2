// Package pendulum implements the pendulum classic control environment
package pendulum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/offlinerl/environment"
	ts "github.com/samuelfneumann/offlinerl/timestep"
	"github.com/samuelfneumann/offlinerl/utils/floatutils"
)

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	// Actions are given in [-1, 1] and scaled by TorqueBound
	MaxContinuousAction float64 = 1.0
	MinContinuousAction float64 = -MaxContinuousAction

	dt              float64 = 0.05
	Gravity         float64 = 9.8
	Mass            float64 = 1.0
	Length          float64 = 1.0
	ActionDims      int     = 1
	ObservationDims int     = 2
)

// Continuous implements the classic control environment Pendulum. In this
// environment, a pendulum is attached to a fixed base. An agent can
// swing the pendulum back and forth, but the swinging force/torque is
// underpowered. In order to be able to swing the pendulum straight up,
// it must first be rocked back and forth, using the momentum to
// gradually climb higher until the pendulum can point straight up or
// rotate fully around its fixed base.
//
// State features consist of the angle of the pendulum from the positive
// y-axis and the angular velocity of the pendulum. The angular
// velocity is clipped betwee [-SpeedBound, SpeedBound]. Angles are
// normalized to stay within [-AngleBound, AngleBound] = [-π, π].
//
// Actions are continuous and 1-dimensional, bounded by [-1, 1], and
// are scaled by TorqueBound to get the torque applied at the fixed
// base. Actions outside of this region are clipped.
type Continuous struct {
	environment.Task
	gravity      float64
	mass         float64
	length       float64
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	actionBounds r1.Interval
	lastStep     ts.TimeStep
	discount     float64
}

// NewContinuous creates and returns a new Continuous environment
func NewContinuous(t environment.Task, discount float64) (*Continuous,
	ts.TimeStep, error) {
	p := &Continuous{
		Task:         t,
		gravity:      Gravity,
		mass:         Mass,
		length:       Length,
		angleBounds:  r1.Interval{Min: -AngleBound, Max: AngleBound},
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		actionBounds: r1.Interval{Min: MinContinuousAction, Max: MaxContinuousAction},
		discount:     discount,
	}

	firstStep, err := p.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newContinuous: %v", err)
	}
	return p, firstStep, nil
}

// CurrentTimeStep returns the last TimeStep that occurred in the
// environment
func (p *Continuous) CurrentTimeStep() ts.TimeStep {
	return p.lastStep
}

// Seed re-seeds the starting state distribution if the Task's Starter
// supports it
func (p *Continuous) Seed(seed uint64) {
	if s, ok := p.Task.(environment.Seeder); ok {
		s.Seed(seed)
	}
}

// Reset resets the environment and returns a starting state drawn from the
// Starter
func (p *Continuous) Reset() (ts.TimeStep, error) {
	state := p.Start()
	if !p.ObservationSpec().Contains(state) {
		return ts.TimeStep{}, fmt.Errorf("reset: starting state %v is "+
			"outside the observation bounds", mat.Formatted(state.T()))
	}
	startStep := ts.New(ts.First, 0, p.discount, state, 0)
	p.lastStep = startStep

	return startStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep as a timestep.TimeStep and a bool indicating whether or not
// the episode has ended.
func (p *Continuous) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != ActionDims {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions should be "+
			"%v-dimensional", ActionDims)
	}

	a := floatutils.Clip(action.AtVec(0), p.actionBounds.Min,
		p.actionBounds.Max)
	nextState := p.nextState(p.lastStep, a*TorqueBound)

	reward := p.GetReward(p.lastStep.Observation, action, nextState)
	nextStep := ts.New(ts.Mid, reward, p.discount, nextState,
		p.lastStep.Number+1)

	// Check if the step is the last in the episode and adjust step type
	// if necessary
	p.End(&nextStep)

	p.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState computes the next state of the environment given a timestep and
// an amount of torque to apply to the fixed base of the pendulum.
func (p *Continuous) nextState(t ts.TimeStep, torque float64) *mat.VecDense {
	obs := t.Observation
	th, thdot := obs.AtVec(0), obs.AtVec(1)

	newthdot := thdot + (-3*p.gravity/(2*p.length)*math.Sin(th+math.Pi)+
		3.0/(p.mass*math.Pow(p.length, 2))*torque)*dt

	newth := th + (newthdot * dt)

	newthdot = floatutils.Clip(newthdot, p.speedBounds.Min, p.speedBounds.Max)

	newth = wrapAngle(newth)

	return mat.NewVecDense(ObservationDims, []float64{newth, newthdot})
}

// DiscountSpec returns the discount specification of the environment
func (p *Continuous) DiscountSpec() environment.Spec {
	return environment.NewSpec(environment.Discount, []float64{p.discount},
		[]float64{p.discount})
}

// ObservationSpec returns the observation specification of the environment
func (p *Continuous) ObservationSpec() environment.Spec {
	return environment.NewSpec(environment.Observation,
		[]float64{p.angleBounds.Min, p.speedBounds.Min},
		[]float64{p.angleBounds.Max, p.speedBounds.Max})
}

// ActionSpec returns the action specification of the environment
func (p *Continuous) ActionSpec() environment.Spec {
	return environment.NewSpec(environment.Action,
		[]float64{p.actionBounds.Min}, []float64{p.actionBounds.Max})
}

// String converts the environment to a string representation
func (p *Continuous) String() string {
	str := "Pendulum  |  theta: %v  |  theta dot: %v\n"
	theta := p.lastStep.Observation.AtVec(0)
	thetadot := p.lastStep.Observation.AtVec(1)

	return fmt.Sprintf(str, theta, thetadot)
}

// wrapAngle wraps th into [-π, π)
func wrapAngle(th float64) float64 {
	th = math.Mod(th+math.Pi, 2*math.Pi)
	if th < 0 {
		th += 2 * math.Pi
	}
	return th - math.Pi
}
