package timestep

import "gonum.org/v1/gonum/mat"

// Transition implements a (S, A, R, γ, S') transition tuple. Terminal
// denotes whether S' is a terminal state, Timeout whether the episode
// was cut off at S' by a step limit.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
	Terminal  bool
	Timeout   bool
}

// NewTransition creates a transition from the step/action pair
// (step, action) that lead to nextStep.
func NewTransition(step TimeStep, action *mat.VecDense,
	nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  nextStep.Discount,
		NextState: nextStep.Observation,
		Terminal:  nextStep.EndType() == TerminalStateReached,
		Timeout:   nextStep.EndType() == Timeout,
	}
}
