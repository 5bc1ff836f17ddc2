package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// newInput adds a batch x features input matrix to g
func newInput(g *G.ExprGraph, batch, features int) *G.Node {
	return G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))
}

// letInput binds data, in row major order, to the input matrix node
func letInput(input *G.Node, data []float64) error {
	if size := input.Shape().TotalSize(); len(data) != size {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", size, len(data))
	}
	return G.Let(input, tensor.New(tensor.WithBacking(data),
		tensor.WithShape(input.Shape()...)))
}

func asModel(nodes G.Nodes) []G.ValueGrad {
	model := make([]G.ValueGrad, len(nodes))
	for i, n := range nodes {
		model[i] = n
	}
	return model
}

// mlp is a fully connected network predicting outputs values per
// input row
type mlp struct {
	input   *G.Node
	layers  []Layer
	outputs int

	learnables G.Nodes
	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLP adds to g an MLP with outputs linear output units.
//
// Hidden layer i has hiddenSizes[i] units, a bias unit if biases[i],
// and activation activations[i]. A final linear layer with a bias
// produces the outputs. All weights are initialized with init and all
// biases with zeroes.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	return newMLP(newInput(g, batch, features), outputs, hiddenSizes, biases,
		init, activations, "")
}

// newMLP builds an MLP on input, prefixing its node names with prefix
// so that several MLPs can share a graph
func newMLP(input *G.Node, outputs int, hiddenSizes []int, biases []bool,
	init G.InitWFn, activations []*Activation, prefix string) (*mlp, error) {
	if len(activations) != len(hiddenSizes) ||
		len(biases) != len(hiddenSizes) {
		return nil, fmt.Errorf("newMultiHeadMLP: need one activation and "+
			"bias per hidden layer\n\twant(%d)\n\thave(activations: %d, "+
			"biases: %d)", len(hiddenSizes), len(activations), len(biases))
	}
	if !input.IsMatrix() {
		return nil, fmt.Errorf("newMultiHeadMLP: input must be a matrix")
	}

	sizes := append(append([]int{}, hiddenSizes...), outputs)
	bs := append(append([]bool{}, biases...), true)
	acts := append(append([]*Activation{}, activations...), Identity())

	layers := addfcLayers(input.Graph(), sizes, bs, acts, init,
		input.Shape()[1], prefix)

	m := &mlp{layers: layers, outputs: outputs}
	if err := m.connect(input); err != nil {
		return nil, fmt.Errorf("newMultiHeadMLP: %v", err)
	}
	return m, nil
}

// connect adds the forward pass of the layers on input to the graph
func (m *mlp) connect(input *G.Node) error {
	m.input = input
	m.learnables = m.learnables[:0]

	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("connect: layer %v: %v", i, err)
		}
		m.learnables = append(m.learnables, l.Weights())
		if bias := l.Bias(); bias != nil {
			m.learnables = append(m.learnables, bias)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)
	return nil
}

// cloneTo copies m onto input, which may live on another graph. The
// clone gets its own copy of the weights.
func (m *mlp) cloneTo(input *G.Node) (*mlp, error) {
	if !input.IsMatrix() || input.Shape()[1] != m.Features() {
		return nil, fmt.Errorf("cloneTo: input must be a matrix with %v "+
			"columns", m.Features())
	}

	clone := &mlp{layers: make([]Layer, len(m.layers)), outputs: m.outputs}
	for i, l := range m.layers {
		clone.layers[i] = l.CloneTo(input.Graph())
	}
	if err := clone.connect(input); err != nil {
		return nil, fmt.Errorf("cloneTo: %v", err)
	}
	if err := Set(clone, m); err != nil {
		return nil, fmt.Errorf("cloneTo: %v", err)
	}
	return clone, nil
}

func (m *mlp) Clone() (NeuralNet, error) {
	return m.CloneWithBatch(m.BatchSize())
}

// CloneWithBatch copies the MLP onto a new graph whose input holds
// batchSize rows
func (m *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	return m.cloneTo(newInput(G.NewGraph(), batchSize, m.Features()))
}

func (m *mlp) Graph() *G.ExprGraph { return m.input.Graph() }
func (m *mlp) BatchSize() int { return m.input.Shape()[0] }
func (m *mlp) Features() int { return m.input.Shape()[1] }
func (m *mlp) Outputs() int { return m.outputs }
func (m *mlp) SetInput(x []float64) error { return letInput(m.input, x) }
func (m *mlp) Learnables() G.Nodes { return m.learnables }
func (m *mlp) Model() []G.ValueGrad { return asModel(m.learnables) }
func (m *mlp) Output() []G.Value { return []G.Value{m.predVal} }
func (m *mlp) Prediction() []*G.Node { return []*G.Node{m.prediction} }
