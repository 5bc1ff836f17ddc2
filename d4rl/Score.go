package d4rl

import "strings"

// Reference holds the returns of a random and an expert policy in an
// environment, used to normalize scores
type Reference struct {
	Random float64
	Expert float64
}

var references = map[string]Reference{
	"hopper":      {Random: -20.272305, Expert: 3234.3},
	"halfcheetah": {Random: -280.178953, Expert: 12135.0},
	"walker2d":    {Random: 1.629008, Expert: 4592.3},
}

// ReferenceScore returns the reference returns of agent, and whether
// any are known
func ReferenceScore(agent string) (Reference, bool) {
	ref, ok := references[strings.ToLower(agent)]
	return ref, ok
}

// NormalizedScore returns the return ret as a percentage of the way
// between the random and expert reference returns of agent. The second
// return value is false if agent has no reference returns.
func NormalizedScore(agent string, ret float64) (float64, bool) {
	ref, ok := ReferenceScore(agent)
	if !ok {
		return 0, false
	}
	return 100 * (ret - ref.Random) / (ref.Expert - ref.Random), true
}
