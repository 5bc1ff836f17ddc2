package d4rl

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RewardScale is the range that trajectory returns are scaled to by
// NormalizeReward
const RewardScale float64 = 1000.0

// ObsStdEps is added to the standard deviation of observations before
// normalizing
const ObsStdEps float64 = 1e-3

// NormalizeReward scales the rewards of d in place so that the spread
// between the highest and lowest trajectory return is RewardScale. The
// scale applied is returned. If all trajectories have the same return,
// rewards are not changed and the returned scale is 1.
func NormalizeReward(d *Dataset) float64 {
	returns := d.Returns()
	if len(returns) == 0 {
		return 1.0
	}

	spread := floats.Max(returns) - floats.Min(returns)
	if spread == 0 {
		return 1.0
	}

	scale := RewardScale / spread
	floats.Scale(scale, d.Rewards)
	return scale
}

// NormalizeObs standardizes the observations and next observations of
// d in place using the mean and standard deviation of each observation
// feature. The mean and standard deviation (with ObsStdEps added) are
// returned so that the same transform can be applied to the
// environment.
func NormalizeObs(d *Dataset) (mean, std []float64) {
	mean = make([]float64, d.ObsDim)
	std = make([]float64, d.ObsDim)
	if d.Len() == 0 {
		for i := range std {
			std[i] = 1.0
		}
		return mean, std
	}

	obs := mat.NewDense(d.Len(), d.ObsDim, d.Observations)
	col := make([]float64, d.Len())
	for j := 0; j < d.ObsDim; j++ {
		mat.Col(col, j, obs)
		mean[j], std[j] = stat.PopMeanStdDev(col, nil)
		std[j] += ObsStdEps
	}

	standardize(d.Observations, mean, std)
	standardize(d.NextObservations, mean, std)
	return mean, std
}

// standardize standardizes the rows of the row major matrix data
// in place
func standardize(data, mean, std []float64) {
	dim := len(mean)
	for i := 0; i < len(data); i += dim {
		row := data[i : i+dim]
		floats.Sub(row, mean)
		floats.Div(row, std)
	}
}
