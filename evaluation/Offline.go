// Package evaluation implements the evaluation of policies learned
// offline by running them in their environment.
package evaluation

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/d4rl"
	env "github.com/samuelfneumann/offlinerl/environment"
)

// Names of the metrics returned by Offline
const (
	ReturnMean          = "return_mean"
	ReturnStd           = "return_std"
	LengthMean          = "length_mean"
	LengthStd           = "length_std"
	NormalizedScoreMean = "normalized_score_mean"
	NormalizedScoreStd  = "normalized_score_std"
)

// Offline runs episodes full episodes of policy p in environment e
// and returns the mean and population standard deviation of episodic
// returns and lengths. If agentName has D4RL reference returns, the
// mean and standard deviation of normalized scores are also returned.
//
// The policy is evaluated in evaluation mode, and is returned to its
// previous mode afterwards. If e can be seeded, it is seeded with seed
// before the first episode.
func Offline(e env.Environment, p agent.Policy, agentName string,
	episodes int, seed uint64) (map[string]float64, error) {
	if episodes < 1 {
		return nil, fmt.Errorf("offline: number of episodes must be "+
			"positive but got %v", episodes)
	}

	if !p.IsEval() {
		p.Eval()
		defer p.Train()
	}
	if seeder, ok := e.(env.Seeder); ok {
		seeder.Seed(seed)
	}

	returns := make([]float64, episodes)
	lengths := make([]float64, episodes)
	for i := 0; i < episodes; i++ {
		ret, length, err := runEpisode(e, p)
		if err != nil {
			return nil, fmt.Errorf("offline: episode %v: %v", i, err)
		}
		returns[i], lengths[i] = ret, float64(length)
	}

	metrics := make(map[string]float64, 6)
	metrics[ReturnMean], metrics[ReturnStd] = stat.PopMeanStdDev(returns, nil)
	metrics[LengthMean], metrics[LengthStd] = stat.PopMeanStdDev(lengths, nil)

	if _, ok := d4rl.ReferenceScore(agentName); ok {
		scores := make([]float64, episodes)
		for i, ret := range returns {
			scores[i], _ = d4rl.NormalizedScore(agentName, ret)
		}
		metrics[NormalizedScoreMean], metrics[NormalizedScoreStd] =
			stat.PopMeanStdDev(scores, nil)
	}

	return metrics, nil
}

// runEpisode runs a single episode and returns its undiscounted return
// and its length
func runEpisode(e env.Environment, p agent.Policy) (float64, int, error) {
	step, err := e.Reset()
	if err != nil {
		return 0, 0, err
	}

	var ret float64
	var length int
	for !step.Last() {
		var done bool
		step, done, err = e.Step(p.SelectAction(step))
		if err != nil {
			return 0, 0, err
		}
		ret += step.Reward
		length++

		if done {
			break
		}
	}
	return ret, length, nil
}
