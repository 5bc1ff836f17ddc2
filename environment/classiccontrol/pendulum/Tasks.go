package pendulum

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/offlinerl/environment"
)

// SwingUp rewards the cosine of the pendulum's angle from the upright
// position, so that holding the pendulum straight up earns a reward of
// 1 on each step. Episodes time out after a fixed number of steps.
type SwingUp struct {
	environment.Starter
	environment.StepLimit
}

// NewSwingUp returns a SwingUp task drawing starting states from s
// with episodes of at most maxSteps steps
func NewSwingUp(s environment.Starter, maxSteps int) *SwingUp {
	return &SwingUp{s, environment.StepLimit(maxSteps)}
}

// Seed re-seeds the task's Starter if it supports seeding
func (s *SwingUp) Seed(seed uint64) {
	if seeder, ok := s.Starter.(environment.Seeder); ok {
		seeder.Seed(seed)
	}
}

func (*SwingUp) GetReward(_, _, nextState mat.Vector) float64 {
	return math.Cos(nextState.AtVec(0))
}

func (*SwingUp) RewardSpec() environment.Spec {
	return environment.NewSpec(environment.Reward, []float64{-1}, []float64{1})
}
