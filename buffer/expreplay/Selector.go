package expreplay

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
)

// Names of the selectors which NewSelector can construct
const (
	Uniform = "uniform"
	Shuffle = "shuffle"
)

// Selector implements functionality for choosing the indices at which
// data should be sampled from an experience replay buffer
type Selector interface {
	// choose selects n indices in [0, capacity)
	choose(n, capacity int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly with replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	return &uniformSelector{rng: rand.New(rand.NewSource(seed))}
}

// choose selects a number of indices at which to draw data from the
// buffer
func (u *uniformSelector) choose(n, capacity int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = u.rng.Intn(capacity)
	}
	return selected
}

// shuffleSelector is a Selector which selects data from an experience
// replay buffer without replacement, sweeping over a random
// permutation of the buffer. A new permutation is drawn once every
// index has been selected.
type shuffleSelector struct {
	rng   *rand.Rand
	order []int
	next  int
}

// NewShuffleSelector returns a new Selector which selects data in
// shuffled sweeps over an experience replay buffer
func NewShuffleSelector(seed uint64) Selector {
	return &shuffleSelector{rng: rand.New(rand.NewSource(seed))}
}

// choose selects a number of indices at which to draw data from the
// buffer
func (s *shuffleSelector) choose(n, capacity int) []int {
	selected := make([]int, n)
	for i := range selected {
		if s.next >= len(s.order) || len(s.order) != capacity {
			s.order = s.rng.Perm(capacity)
			s.next = 0
		}
		selected[i] = s.order[s.next]
		s.next++
	}
	return selected
}

// NewSelector returns the Selector with the given name, which must be
// one of Uniform or Shuffle
func NewSelector(name string, seed uint64) (Selector, error) {
	switch strings.ToLower(name) {
	case Uniform:
		return NewUniformSelector(seed), nil
	case Shuffle:
		return NewShuffleSelector(seed), nil
	}
	return nil, fmt.Errorf("newSelector: unknown selector %q", name)
}
