package d4rl

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// Quotas returns the number of transitions to take from each dataset
// when mixing n transitions, a fraction ratio of which come from the
// first dataset
func Quotas(n int, ratio float64) (int, int) {
	n1 := int(math.Round(float64(n) * ratio))
	return n1, n - n1
}

// Mix returns a new Dataset with n transitions, round(n * ratio) of
// which are taken from d1 and the rest from d2.
//
// If keepTraj is true, whole trajectories are taken from each dataset
// in a random order until its quota is met. The last trajectory taken
// is truncated to fit the quota, and its final transition is marked as
// a timeout. Otherwise, transitions are sampled uniformly without
// replacement. If a quota exceeds the size of its dataset, the entire
// dataset is taken.
func Mix(d1, d2 *Dataset, n int, ratio float64, keepTraj bool,
	rng *rand.Rand) (*Dataset, error) {
	if n < 1 {
		return nil, fmt.Errorf("mix: number of transitions must be "+
			"positive but got %v", n)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("mix: ratio must be in [0, 1] but got %v",
			ratio)
	}
	if d1.ObsDim != d2.ObsDim || d1.ActDim != d2.ActDim {
		return nil, fmt.Errorf("mix: datasets have different dimensions "+
			"(%v, %v) and (%v, %v)", d1.ObsDim, d1.ActDim, d2.ObsDim,
			d2.ActDim)
	}

	n1, n2 := Quotas(n, ratio)
	mixed, err := take(d1, n1, keepTraj, rng).Concat(
		take(d2, n2, keepTraj, rng))
	if err != nil {
		return nil, fmt.Errorf("mix: %v", err)
	}
	return mixed, nil
}

// take returns quota transitions of d
func take(d *Dataset, quota int, keepTraj bool, rng *rand.Rand) *Dataset {
	if quota >= d.Len() {
		quota = d.Len()
	}
	if quota <= 0 {
		return New(d.ObsDim, d.ActDim, 0)
	}

	if !keepTraj {
		indices := rng.Perm(d.Len())[:quota]
		sort.Ints(indices)
		return d.Subset(indices)
	}

	trajectories := d.Trajectories()
	rng.Shuffle(len(trajectories), func(i, j int) {
		trajectories[i], trajectories[j] = trajectories[j], trajectories[i]
	})

	indices := make([]int, 0, quota)
	var ends []int
	for _, t := range trajectories {
		remaining := quota - len(indices)
		if remaining <= 0 {
			break
		}
		end := t.End
		if t.Len() > remaining {
			end = t.Start + remaining
		}
		for i := t.Start; i < end; i++ {
			indices = append(indices, i)
		}
		ends = append(ends, len(indices)-1)
	}

	// Segments which do not end in a terminal state were cut off
	subset := d.Subset(indices)
	for _, i := range ends {
		if !subset.Terminals[i] {
			subset.Timeouts[i] = true
		}
	}
	return subset
}
