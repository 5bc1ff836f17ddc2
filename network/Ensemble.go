package network

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// Ensemble implements an ensemble of MLPs of identical architecture
// which share a single input node. Each member is independently
// initialized and has its own prediction node.
type Ensemble struct {
	input   *G.Node
	members []*mlp

	learnables G.Nodes
}

// NewEnsembleMLP returns a new Ensemble of size MLPs. Each member has
// the architecture described by NewMultiHeadMLP.
func NewEnsembleMLP(features, batch, outputs, size int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (*Ensemble, error) {
	if size < 1 {
		return nil, fmt.Errorf("newEnsembleMLP: ensemble must have at "+
			"least 1 member but got %v", size)
	}

	input := newInput(g, batch, features)
	members := make([]*mlp, size)
	for i := range members {
		member, err := newMLP(input, outputs, hiddenSizes, biases, init,
			activations, fmt.Sprintf("E%d", i))
		if err != nil {
			return nil, fmt.Errorf("newEnsembleMLP: could not create member "+
				"%v: %v", i, err)
		}
		members[i] = member
	}
	return newEnsemble(input, members), nil
}

func newEnsemble(input *G.Node, members []*mlp) *Ensemble {
	e := &Ensemble{input: input, members: members}
	for _, m := range members {
		e.learnables = append(e.learnables, m.Learnables()...)
	}
	return e
}

// Graph returns the computational graph of the Ensemble
func (e *Ensemble) Graph() *G.ExprGraph {
	return e.input.Graph()
}

// Size returns the number of members in the Ensemble
func (e *Ensemble) Size() int {
	return len(e.members)
}

// Clone clones an Ensemble
func (e *Ensemble) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.BatchSize())
}

// CloneWithBatch clones an Ensemble to a new computational graph with a
// new input batch size. Weights are copied.
func (e *Ensemble) CloneWithBatch(batchSize int) (NeuralNet, error) {
	input := newInput(G.NewGraph(), batchSize, e.Features())
	members := make([]*mlp, len(e.members))
	for i, m := range e.members {
		clone, err := m.cloneTo(input)
		if err != nil {
			return nil, fmt.Errorf("cloneWithBatch: could not clone member "+
				"%v: %v", i, err)
		}
		members[i] = clone
	}
	return newEnsemble(input, members), nil
}

// BatchSize returns the batch size of inputs to the Ensemble
func (e *Ensemble) BatchSize() int {
	return e.input.Shape()[0]
}

// Features returns the number of input features of the Ensemble
func (e *Ensemble) Features() int {
	return e.input.Shape()[1]
}

// Outputs returns the number of outputs of each member
func (e *Ensemble) Outputs() int {
	return e.members[0].Outputs()
}

// SetInput sets the value of the input node shared by all members
func (e *Ensemble) SetInput(input []float64) error {
	return letInput(e.input, input)
}

// Learnables returns the learnable nodes of all members, member by
// member
func (e *Ensemble) Learnables() G.Nodes {
	return e.learnables
}

// Model returns the learnable nodes with their gradients
func (e *Ensemble) Model() []G.ValueGrad {
	return asModel(e.learnables)
}

// Output returns the output of each member
func (e *Ensemble) Output() []G.Value {
	out := make([]G.Value, len(e.members))
	for i, m := range e.members {
		out[i] = m.Output()[0]
	}
	return out
}

// Prediction returns the prediction node of each member
func (e *Ensemble) Prediction() []*G.Node {
	pred := make([]*G.Node, len(e.members))
	for i, m := range e.members {
		pred[i] = m.Prediction()[0]
	}
	return pred
}

// MinOutput returns the element-wise minimum of the member outputs
// after the graph has been run
func (e *Ensemble) MinOutput() []float64 {
	out := e.Output()
	min := make([]float64, len(out[0].Data().([]float64)))
	copy(min, out[0].Data().([]float64))

	for _, o := range out[1:] {
		for i, v := range o.Data().([]float64) {
			if v < min[i] {
				min[i] = v
			}
		}
	}
	return min
}

// MeanOutput returns the mean output over all members and all samples
// after the graph has been run
func (e *Ensemble) MeanOutput() float64 {
	var sum float64
	var n int
	for _, o := range e.Output() {
		data := o.Data().([]float64)
		sum += floats.Sum(data)
		n += len(data)
	}
	return sum / float64(n)
}
