// Package policy implements policies for continuous-action agents
// using neural network function approximation.
package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/timestep"
	"github.com/samuelfneumann/offlinerl/utils/floatutils"
)

// Default bounds of the log standard deviation
const (
	LogStdMin float64 = -6.0
	LogStdMax float64 = 0.0
)

// ClippedGaussianMLP implements a Gaussian policy whose mean is
// predicted by an MLP and squashed into (-1, 1) by tanh, and whose log
// standard deviation is a learnable vector which does not depend on the
// state. After each update of the log standard deviation,
// ProjectLogStd must be called to keep it within
// [logStdMin, logStdMax].
//
// Actions are selected by sampling from the standard normal
// ɛ ~ N(0, 1) and computing action := μ + σ * ɛ, which is then clipped
// to the action bounds of the environment. In evaluation mode, the
// mean action is selected.
//
// The log density of externally inputted actions in externally
// inputted states is computed on the policy's graph by the node
// returned by LogPdfNode, so that external VMs can construct losses
// from it.
type ClippedGaussianMLP struct {
	vm  G.VM
	net network.NeuralNet

	logStd     *G.Node
	learnables G.Nodes
	model      []G.ValueGrad

	actions    *G.Node
	logPdfNode *G.Node
	logPdfVal  G.Value
	meanVal    G.Value
	stddevVal  G.Value

	normal     distmv.Rander
	features   int
	actionDims int
	batch      int
	actionMin  []float64
	actionMax  []float64
	logStdMin  float64
	logStdMax  float64
	eval       bool

	hiddenSizes []int
	biases      []bool
	activations []*network.Activation
	seed        uint64
}

// NewClippedGaussianMLP returns a new ClippedGaussianMLP policy which
// selects actions in the argument environment. The policy's mean
// network has hidden layers described by hiddenSizes, biases, and
// activations, and is initialized with init. The seed determines the
// seed of the policy's action sampler.
//
// The policy computes log densities for batches of batch actions
// and samples batches of batch actions at once. Action selection
// with SelectAction requires a batch size of 1.
func NewClippedGaussianMLP(env environment.Environment, batch int,
	g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn, logStdMin,
	logStdMax float64, seed uint64) (*ClippedGaussianMLP, error) {
	if !env.ActionSpec().Bounded() {
		return nil, fmt.Errorf("newClippedGaussianMLP: actions should be " +
			"bounded")
	}

	features := env.ObservationSpec().Dim()
	actionMin := env.ActionSpec().LowerBound.RawVector().Data
	actionMax := env.ActionSpec().UpperBound.RawVector().Data

	return newClippedGaussianMLP(features, actionMin, actionMax, batch, g,
		hiddenSizes, biases, activations, init, logStdMin, logStdMax, seed)
}

// newClippedGaussianMLP returns a new ClippedGaussianMLP for
// observations with features features and actions bounded by
// [actionMin, actionMax]
func newClippedGaussianMLP(features int, actionMin, actionMax []float64,
	batch int, g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn, logStdMin,
	logStdMax float64, seed uint64) (*ClippedGaussianMLP, error) {
	if logStdMin > logStdMax {
		return nil, fmt.Errorf("newClippedGaussianMLP: minimum log "+
			"standard deviation %v > maximum %v", logStdMin, logStdMax)
	}
	actionDims := len(actionMin)

	net, err := network.NewMultiHeadMLP(features, batch, actionDims, g,
		hiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newClippedGaussianMLP: could not create "+
			"mean network: %v", err)
	}

	mean, err := G.Tanh(net.Prediction()[0])
	if err != nil {
		return nil, fmt.Errorf("newClippedGaussianMLP: could not squash "+
			"mean: %v", err)
	}

	// Initial log standard deviation is clipped into the legal range
	initLogStd := floatutils.Clip(0, logStdMin, logStdMax)
	logStd := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, actionDims),
		G.WithName("LogStd"),
		G.WithInit(G.ValuesOf(initLogStd)),
	)
	std := G.Must(G.Exp(logStd))

	// Calculate log probability of input actions
	actions := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithName("InputActions"),
		G.WithShape(batch, actionDims),
		G.WithInit(G.Zeroes()),
	)
	logPdfNode, err := logPdf(mean, std, logStd, actions)
	if err != nil {
		return nil, fmt.Errorf("newClippedGaussianMLP: could not compute "+
			"log density: %v", err)
	}

	// Create standard normal for action selection
	means := make([]float64, actionDims)
	stds := mat.NewDiagDense(actionDims, ones(actionDims))
	normal, ok := distmv.NewNormal(means, stds, rand.NewSource(seed))
	if !ok {
		return nil, fmt.Errorf("newClippedGaussianMLP: could not create " +
			"standard normal for action selection")
	}

	pol := &ClippedGaussianMLP{
		net:    net,
		logStd: logStd,

		actions:    actions,
		logPdfNode: logPdfNode,

		normal:     normal,
		features:   features,
		actionDims: actionDims,
		batch:      batch,
		actionMin:  append([]float64{}, actionMin...),
		actionMax:  append([]float64{}, actionMax...),
		logStdMin:  logStdMin,
		logStdMax:  logStdMax,

		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
		seed:        seed,
	}

	// Record values of Gorgonia nodes
	G.Read(pol.logPdfNode, &pol.logPdfVal)
	G.Read(mean, &pol.meanVal)
	G.Read(std, &pol.stddevVal)

	pol.vm = G.NewTapeMachine(g)

	return pol, nil
}

// logPdf adds nodes to the computational graph of mean/std/actions for
// computing the log density of actions under a diagonal Gaussian with
// mean mean and standard deviation std = exp(logStd), broadcast over
// the batch dimension.
func logPdf(mean, std, logStd, actions *G.Node) (*G.Node, error) {
	graph := mean.Graph()
	if graph != std.Graph() || graph != actions.Graph() {
		return nil, fmt.Errorf("logPdf: all nodes must share the same graph")
	}
	dims := float64(mean.Shape()[1])

	// -1/2 Σ ((a - μ) / σ)²
	exponent, err := G.Sub(actions, mean)
	if err != nil {
		return nil, err
	}
	exponent, err = G.BroadcastHadamardDiv(exponent, std, nil, []byte{0})
	if err != nil {
		return nil, err
	}
	exponent = G.Must(G.Square(exponent))
	exponent = G.Must(G.Sum(exponent, 1))
	exponent = G.Must(G.Mul(exponent, G.NewConstant(-0.5)))

	// Σ log(σ) + k/2 log(2π)
	normalizer := G.Must(G.Sum(logStd))
	normalizer = G.Must(G.Add(normalizer,
		G.NewConstant(0.5*dims*math.Log(2*math.Pi))))

	return G.Sub(exponent, normalizer)
}

// LogPdfOf sets the state and action inputs of the policy's
// computational graph to the argument state and actions (s and a
// respectively) so that when a VM of the policy is run, the log
// probabliity of actions a taken in states s will be computed and
// stored in the policy's associate log PDF node, which is returned.
//
// The reason this function does not return the log PDF of actions is
// because this would require running the policy's VM, which does
// not contain any loss function. Use LogProb to compute the values
// with the policy's own VM.
func (c *ClippedGaussianMLP) LogPdfOf(s, a []float64) (*G.Node, error) {
	if err := c.Network().SetInput(s); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set states: %v", err)
	}

	if len(a) != c.batch*c.actionDims {
		return nil, fmt.Errorf("logPdfOf: invalid number of actions "+
			"\n\twant(%v) \n\thave(%v)", c.batch*c.actionDims, len(a))
	}
	actionsTensor := tensor.NewDense(tensor.Float64,
		[]int{c.batch, c.actionDims},
		tensor.WithBacking(a),
	)
	if err := G.Let(c.actions, actionsTensor); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set actions: %v", err)
	}

	return c.LogPdfNode(), nil
}

// LogProb returns the log probability of taking actions a in states s
func (c *ClippedGaussianMLP) LogProb(s, a []float64) ([]float64, error) {
	if _, err := c.LogPdfOf(s, a); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	if err := c.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("logProb: could not run policy VM: %v", err)
	}
	defer c.vm.Reset()

	logProb := make([]float64, c.batch)
	copy(logProb, dataOf(c.logPdfVal))
	return logProb, nil
}

// Sample samples a batch of actions in the argument states, returning
// the actions clipped to the action bounds and the log probability of
// the sampled actions before clipping. States should be constructed in
// row major order.
func (c *ClippedGaussianMLP) Sample(s []float64) ([]float64, []float64,
	error) {
	if err := c.Network().SetInput(s); err != nil {
		return nil, nil, fmt.Errorf("sample: could not set states: %v", err)
	}

	if err := c.vm.RunAll(); err != nil {
		return nil, nil, fmt.Errorf("sample: could not run policy VM: %v",
			err)
	}
	defer c.vm.Reset()

	mean := dataOf(c.meanVal)
	stddev := dataOf(c.stddevVal)

	var sumLogStd float64
	for _, std := range stddev {
		sumLogStd += math.Log(std)
	}
	normalizer := sumLogStd + 0.5*float64(c.actionDims)*math.Log(2*math.Pi)

	actions := make([]float64, c.batch*c.actionDims)
	logProb := make([]float64, c.batch)
	eps := make([]float64, c.actionDims)
	for i := 0; i < c.batch; i++ {
		c.normal.Rand(eps)

		var exponent float64
		for j := 0; j < c.actionDims; j++ {
			k := i*c.actionDims + j
			actions[k] = floatutils.Clip(mean[k]+stddev[j]*eps[j],
				c.actionMin[j], c.actionMax[j])
			exponent += eps[j] * eps[j]
		}
		logProb[i] = -0.5*exponent - normalizer
	}

	return actions, logProb, nil
}

// SelectAction selects and returns an action at the argument timestep
// t.
func (c *ClippedGaussianMLP) SelectAction(t timestep.TimeStep) *mat.VecDense {
	if c.batch != 1 {
		panic(fmt.Sprintf("selectAction: action selection can only be done "+
			"with a policy with batch size 1 \n\twant(1) \n\thave(%v)",
			c.batch))
	}

	obs := t.Observation.RawVector().Data
	if err := c.Network().SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set input: %v", err))
	}

	if err := c.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("selectAction: could not run policy VM: %v", err))
	}
	defer c.vm.Reset()

	action := make([]float64, c.actionDims)
	copy(action, dataOf(c.meanVal))

	if !c.eval {
		stddev := dataOf(c.stddevVal)
		eps := c.normal.Rand(nil)
		for i := range action {
			action[i] += stddev[i] * eps[i]
		}
	}

	for i := range action {
		action[i] = floatutils.Clip(action[i], c.actionMin[i], c.actionMax[i])
	}
	return mat.NewVecDense(c.actionDims, action)
}

// ProjectLogStd projects the log standard deviation of the policy into
// [logStdMin, logStdMax]
func (c *ClippedGaussianMLP) ProjectLogStd() error {
	logStd := make([]float64, c.actionDims)
	copy(logStd, c.logStd.Value().Data().([]float64))
	floatutils.ClipSlice(logStd, c.logStdMin, c.logStdMax)

	t := tensor.NewDense(tensor.Float64, c.logStd.Shape().Clone(),
		tensor.WithBacking(logStd))
	if err := G.Let(c.logStd, t); err != nil {
		return fmt.Errorf("projectLogStd: %v", err)
	}
	return nil
}

// LogStd returns the current log standard deviation of the policy
func (c *ClippedGaussianMLP) LogStd() []float64 {
	logStd := make([]float64, c.actionDims)
	copy(logStd, c.logStd.Value().Data().([]float64))
	return logStd
}

// LogPdfNode returns the node that will hold the log probability
// of actions when the comptuational graph is run.
func (c *ClippedGaussianMLP) LogPdfNode() *G.Node {
	return c.logPdfNode
}

// Learnables returns the learnable nodes of the policy, which are
// those of the mean network followed by the log standard deviation
func (c *ClippedGaussianMLP) Learnables() G.Nodes {
	if c.learnables == nil {
		c.learnables = append(G.Nodes{}, c.net.Learnables()...)
		c.learnables = append(c.learnables, c.logStd)
	}
	return c.learnables
}

// Model returns the learnable nodes of the policy with their gradients
func (c *ClippedGaussianMLP) Model() []G.ValueGrad {
	if c.model == nil {
		for _, node := range c.Learnables() {
			c.model = append(c.model, node)
		}
	}
	return c.model
}

// Graph returns the computational graph of the policy
func (c *ClippedGaussianMLP) Graph() *G.ExprGraph {
	return c.net.Graph()
}

// Network returns the mean network of the policy
func (c *ClippedGaussianMLP) Network() network.NeuralNet {
	return c.net
}

// BatchSize returns the batch size of the policy
func (c *ClippedGaussianMLP) BatchSize() int {
	return c.batch
}

// CloneWithBatch clones a ClippedGaussianMLP to a new computational
// graph with a new batch size. The clone's action sampler is seeded
// with seed.
func (c *ClippedGaussianMLP) CloneWithBatch(batch int,
	seed uint64) (*ClippedGaussianMLP, error) {
	clone, err := newClippedGaussianMLP(c.features, c.actionMin,
		c.actionMax, batch, G.NewGraph(), c.hiddenSizes, c.biases,
		c.activations, G.Zeroes(), c.logStdMin, c.logStdMax, seed)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}

	if err := network.Set(clone, c); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: could not copy weights: %v",
			err)
	}
	clone.eval = c.eval

	return clone, nil
}

// Eval sets the policy to evaluation mode
func (c *ClippedGaussianMLP) Eval() {
	c.eval = true
}

// Train sets the policy to training mode
func (c *ClippedGaussianMLP) Train() {
	c.eval = false
}

// IsEval returns whether the policy is in evaluation mode
func (c *ClippedGaussianMLP) IsEval() bool {
	return c.eval
}

// Close cleans up resources used by the policy
func (c *ClippedGaussianMLP) Close() error {
	return c.vm.Close()
}

// dataOf returns the data of a float64 Gorgonia value as a slice
func dataOf(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case float64:
		return []float64{data}
	}
	panic(fmt.Sprintf("dataOf: illegal value type %T", v.Data()))
}

// ones returns a slice of n ones
func ones(n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = 1.0
	}
	return o
}
