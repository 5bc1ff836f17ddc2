// Package network implements feed forward neural networks on Gorgonia
// computational graphs, together with utilities for copying, averaging,
// and checkpointing their weights.
package network

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet implements a neural network on a Gorgonia computational
// graph. A NeuralNet has a single input node and one or more
// prediction nodes.
type NeuralNet interface {
	Parameterized

	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Output returns the values of the prediction nodes after the
	// graph has been run
	Output() []G.Value

	// Prediction returns the nodes that hold the predictions of the
	// network
	Prediction() []*G.Node
}

// Parameterized is anything with learnable nodes in a computational
// graph. Two Parameterized values of the same architecture return
// their learnables in the same order.
type Parameterized interface {
	Learnables() G.Nodes
}

// Set sets the weights of dest to be equal to the weights of source
func Set(dest, source Parameterized) error {
	destNodes, sourceNodes := dest.Learnables(), source.Learnables()
	if err := compatible(destNodes, sourceNodes); err != nil {
		return fmt.Errorf("set: %v", err)
	}

	for i := range destNodes {
		weights := make([]float64, sourceNodes[i].Shape().TotalSize())
		copy(weights, values(sourceNodes[i]))

		if err := let(destNodes[i], weights); err != nil {
			return fmt.Errorf("set: could not set learnable %v: %v",
				destNodes[i].Name(), err)
		}
	}
	return nil
}

// Polyak sets the weights of dest to be a polyak average between its
// existing weights and the weights of source:
//
//	dest <- (1 - tau) * dest + tau * source
func Polyak(dest, source Parameterized, tau float64) error {
	destNodes, sourceNodes := dest.Learnables(), source.Learnables()
	if err := compatible(destNodes, sourceNodes); err != nil {
		return fmt.Errorf("polyak: %v", err)
	}

	for i := range destNodes {
		weights := make([]float64, destNodes[i].Shape().TotalSize())
		floats.ScaleTo(weights, 1-tau, values(destNodes[i]))
		floats.AddScaled(weights, tau, values(sourceNodes[i]))

		if err := let(destNodes[i], weights); err != nil {
			return fmt.Errorf("polyak: could not set learnable %v: %v",
				destNodes[i].Name(), err)
		}
	}
	return nil
}

// StateDict returns a copy of the weights of each learnable node of
// net, in the order returned by net.Learnables()
func StateDict(net Parameterized) [][]float64 {
	learnables := net.Learnables()
	state := make([][]float64, len(learnables))
	for i, node := range learnables {
		state[i] = make([]float64, node.Shape().TotalSize())
		copy(state[i], values(node))
	}
	return state
}

// LoadStateDict sets the weights of net to those stored in state,
// which must have been produced by StateDict on a net of the same
// architecture
func LoadStateDict(net Parameterized, state [][]float64) error {
	learnables := net.Learnables()
	if len(learnables) != len(state) {
		return fmt.Errorf("loadStateDict: invalid number of weights "+
			"\n\twant(%v) \n\thave(%v)", len(learnables), len(state))
	}

	for i, node := range learnables {
		if size := node.Shape().TotalSize(); size != len(state[i]) {
			return fmt.Errorf("loadStateDict: invalid size for learnable "+
				"%v \n\twant(%v) \n\thave(%v)", node.Name(), size,
				len(state[i]))
		}

		weights := make([]float64, len(state[i]))
		copy(weights, state[i])
		if err := let(node, weights); err != nil {
			return fmt.Errorf("loadStateDict: %v", err)
		}
	}
	return nil
}

// compatible returns an error if the two sets of nodes cannot have
// their weights copied between them
func compatible(dest, source G.Nodes) error {
	if len(dest) != len(source) {
		return fmt.Errorf("invalid number of learnables \n\twant(%v) "+
			"\n\thave(%v)", len(dest), len(source))
	}
	for i := range dest {
		if !dest[i].Shape().Eq(source[i].Shape()) {
			return fmt.Errorf("learnable %v has shape %v but source has "+
				"shape %v", i, dest[i].Shape(), source[i].Shape())
		}
	}
	return nil
}

// values returns the backing data of a float64 node
func values(node *G.Node) []float64 {
	return node.Value().Data().([]float64)
}

// let sets the value of node to a tensor of the node's shape backed by
// weights
func let(node *G.Node, weights []float64) error {
	t := tensor.NewDense(
		tensor.Float64,
		node.Shape().Clone(),
		tensor.WithBacking(weights),
	)
	return G.Let(node, t)
}
