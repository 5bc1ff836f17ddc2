// Package expreplay implements an experience replay buffer over a fixed
// dataset of transitions.
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/offlinerl/d4rl"
)

// Batch is a batch of transitions sampled from a buffer. Each field
// is stored in row major order with one row per transition. Discount
// is the mask 1 - terminal of each transition.
type Batch struct {
	State     []float64
	Action    []float64
	Reward    []float64
	Discount  []float64
	NextState []float64
	Size      int
}

// Offline implements an experience replay buffer which holds a fixed
// dataset. Transitions cannot be added or removed once the buffer has
// been created.
type Offline struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64

	featureSize int
	actionSize  int
	capacity    int
	batchSize   int

	sampler Selector
}

// NewOffline returns a new Offline buffer holding a copy of the
// transitions in d, which samples batches of size batchSize uniformly
// with replacement.
func NewOffline(d *d4rl.Dataset, batchSize int, seed uint64) (*Offline,
	error) {
	return NewOfflineWithSelector(d, batchSize, NewUniformSelector(seed))
}

// NewOfflineWithSelector returns a new Offline buffer holding a copy of
// the transitions in d, which samples batches of size batchSize using
// the argument Selector.
func NewOfflineWithSelector(d *d4rl.Dataset, batchSize int,
	sampler Selector) (*Offline, error) {
	if batchSize < 1 {
		return nil, &SampleError{Op: "newOffline", Size: batchSize,
			Capacity: d.Len(), Err: errBatchSize}
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("newOffline: %v", err)
	}

	discount := make([]float64, d.Len())
	for i, terminal := range d.Terminals {
		if !terminal {
			discount[i] = 1.0
		}
	}

	return &Offline{
		stateCache:     append([]float64{}, d.Observations...),
		actionCache:    append([]float64{}, d.Actions...),
		rewardCache:    append([]float64{}, d.Rewards...),
		discountCache:  discount,
		nextStateCache: append([]float64{}, d.NextObservations...),
		featureSize:    d.ObsDim,
		actionSize:     d.ActDim,
		capacity:       d.Len(),
		batchSize:      batchSize,
		sampler:        sampler,
	}, nil
}

// Sample samples a batch of BatchSize transitions from the buffer
func (o *Offline) Sample() (Batch, error) {
	return o.SampleN(o.batchSize)
}

// SampleN samples a batch of n transitions from the buffer
func (o *Offline) SampleN(n int) (Batch, error) {
	var err error
	switch {
	case o.capacity == 0:
		err = errEmpty
	case n < 1:
		err = errBatchSize
	}
	if err != nil {
		return Batch{}, &SampleError{Op: "sampleN", Size: n,
			Capacity: o.capacity, Err: err}
	}

	indices := o.sampler.choose(n, o.capacity)

	b := Batch{
		State:     make([]float64, 0, n*o.featureSize),
		Action:    make([]float64, 0, n*o.actionSize),
		Reward:    make([]float64, 0, n),
		Discount:  make([]float64, 0, n),
		NextState: make([]float64, 0, n*o.featureSize),
		Size:      n,
	}
	for _, i := range indices {
		b.State = append(b.State, row(o.stateCache, i, o.featureSize)...)
		b.Action = append(b.Action, row(o.actionCache, i, o.actionSize)...)
		b.Reward = append(b.Reward, o.rewardCache[i])
		b.Discount = append(b.Discount, o.discountCache[i])
		b.NextState = append(b.NextState,
			row(o.nextStateCache, i, o.featureSize)...)
	}

	return b, nil
}

// Capacity returns the number of transitions in the buffer
func (o *Offline) Capacity() int {
	return o.capacity
}

// BatchSize returns the number of transitions returned by Sample()
func (o *Offline) BatchSize() int {
	return o.batchSize
}

// FeatureSize returns the size of the states in the buffer
func (o *Offline) FeatureSize() int {
	return o.featureSize
}

// ActionSize returns the size of the actions in the buffer
func (o *Offline) ActionSize() int {
	return o.actionSize
}

// row returns row i of the row major matrix data with the given number
// of columns
func row(data []float64, i, cols int) []float64 {
	return data[i*cols : (i+1)*cols]
}
