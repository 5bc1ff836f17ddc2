// Package inac implements the In-sample Actor-Critic (InAC) algorithm
// for offline reinforcement learning.
//
// InAC learns a behaviour policy π_β by maximum likelihood on the
// dataset, a state value function V and an ensemble of action value
// functions Q with soft in-sample targets, and an actor π which is
// regressed towards the in-sample softmax policy
//
//	π(a|s) ∝ π_β(a|s) exp((Q(s, a) - V(s)) / τ)
//
// using only actions from the dataset.
package inac

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/offlinerl/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/network"
	ts "github.com/samuelfneumann/offlinerl/timestep"
	"github.com/samuelfneumann/offlinerl/utils/floatutils"
)

// Names of the metrics returned by Update
const (
	ActorLoss     = "loss/actor"
	BehaviourLoss = "loss/behavior"
	QLoss         = "loss/critic_q"
	VLoss         = "loss/critic_v"
	QPred         = "misc/q_pred"
	VPred         = "misc/v_pred"
)

// InAC implements the In-sample Actor-Critic algorithm. Each network
// being trained lives on its own computational graph together with its
// loss. Networks which are only used for prediction are copies on
// separate graphs, synchronized after each update.
type InAC struct {
	// Actor
	policy            *policy.ClippedGaussianMLP // Batch size 1
	sampler           *policy.ClippedGaussianMLP // Batch size BatchSize
	trainPolicy       *policy.ClippedGaussianMLP
	trainPolicyVM     G.VM
	trainPolicySolver G.Solver
	weights           *G.Node
	policyLossVal     G.Value

	// Behaviour policy
	behaviour            *policy.ClippedGaussianMLP
	trainBehaviour       *policy.ClippedGaussianMLP
	trainBehaviourVM     G.VM
	trainBehaviourSolver G.Solver
	behaviourLossVal     G.Value

	// Action value critic
	q          *network.Ensemble
	qTargets   *G.Node
	qVM        G.VM
	qSolver    G.Solver
	qLossVal   G.Value
	targetQ    *network.Ensemble
	targetQVM  G.VM
	qInput     []float64
	qNextInput []float64

	// State value critic
	v         network.NeuralNet
	vVM       G.VM
	trainV    network.NeuralNet
	vTargets  *G.Node
	trainVVM  G.VM
	vSolver   G.Solver
	vLossVal  G.Value

	temperature float64
	discount    float64
	tau         float64
	clipMin     float64
	clipMax     float64
	batchSize   int
	features    int
	actionDims  int
}

// New creates and returns a new InAC agent which acts in environment
// e. All networks are initialized from a single source seeded by seed.
func New(e env.Environment, c Config, seed uint64) (*InAC, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	features := e.ObservationSpec().Dim()
	actionDims := e.ActionSpec().Dim()
	batch := c.BatchSize
	init := c.InitWFn.Seeded(seed)

	// Create the actor
	trainPolicy, err := policy.NewClippedGaussianMLP(e, batch, G.NewGraph(),
		c.Hidden, c.biases(), c.Activations, init, c.LogStdMin,
		c.LogStdMax, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor: %v", err)
	}
	weights := G.NewVector(
		trainPolicy.Graph(),
		tensor.Float64,
		G.WithName("Weights"),
		G.WithShape(batch),
		G.WithInit(G.Zeroes()),
	)
	policyLoss := G.Must(G.HadamardProd(trainPolicy.LogPdfNode(), weights))
	policyLoss = G.Must(G.Mean(policyLoss))
	policyLoss = G.Must(G.Neg(policyLoss))

	inac := &InAC{
		trainPolicy:       trainPolicy,
		trainPolicySolver: c.ActorSolver.New(),
		weights:           weights,

		trainBehaviourSolver: c.BehaviourSolver.New(),
		qSolver:              c.QSolver.New(),
		vSolver:              c.VSolver.New(),

		temperature: c.Temperature,
		discount:    c.Discount,
		tau:         c.Tau,
		clipMin:     c.ClipMin,
		clipMax:     c.ClipMax,
		batchSize:   batch,
		features:    features,
		actionDims:  actionDims,
	}
	G.Read(policyLoss, &inac.policyLossVal)
	if _, err := G.Grad(policyLoss, trainPolicy.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute actor gradient: %v",
			err)
	}
	inac.trainPolicyVM = G.NewTapeMachine(trainPolicy.Graph(),
		G.BindDualValues(trainPolicy.Learnables()...))

	if inac.sampler, err = trainPolicy.CloneWithBatch(batch,
		seed+1); err != nil {
		return nil, fmt.Errorf("new: could not create sampler: %v", err)
	}
	if inac.policy, err = trainPolicy.CloneWithBatch(1, seed+2); err != nil {
		return nil, fmt.Errorf("new: could not create policy: %v", err)
	}

	// Create the behaviour policy
	trainBehaviour, err := policy.NewClippedGaussianMLP(e, batch,
		G.NewGraph(), c.Hidden, c.biases(), c.Activations, init,
		c.LogStdMin, c.LogStdMax, seed+3)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}
	behaviourLoss := G.Must(G.Mean(trainBehaviour.LogPdfNode()))
	behaviourLoss = G.Must(G.Neg(behaviourLoss))
	G.Read(behaviourLoss, &inac.behaviourLossVal)
	if _, err := G.Grad(behaviourLoss,
		trainBehaviour.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute behaviour gradient: "+
			"%v", err)
	}
	inac.trainBehaviour = trainBehaviour
	inac.trainBehaviourVM = G.NewTapeMachine(trainBehaviour.Graph(),
		G.BindDualValues(trainBehaviour.Learnables()...))
	if inac.behaviour, err = trainBehaviour.CloneWithBatch(batch,
		seed+4); err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}

	// Create the action value critic and its target
	q, err := network.NewEnsembleMLP(features+actionDims, batch, 1,
		c.EnsembleSize, G.NewGraph(), c.Hidden, c.biases(), init,
		c.Activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %v", err)
	}
	qTargets := G.NewMatrix(
		q.Graph(),
		tensor.Float64,
		G.WithName("QTargets"),
		G.WithShape(batch, 1),
		G.WithInit(G.Zeroes()),
	)
	var qLoss *G.Node
	for _, pred := range q.Prediction() {
		loss := G.Must(G.Sub(pred, qTargets))
		loss = G.Must(G.Square(loss))
		loss = G.Must(G.Mean(loss))
		if qLoss == nil {
			qLoss = loss
		} else {
			qLoss = G.Must(G.Add(qLoss, loss))
		}
	}
	G.Read(qLoss, &inac.qLossVal)
	if _, err := G.Grad(qLoss, q.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute critic gradient: %v",
			err)
	}
	inac.q = q
	inac.qTargets = qTargets
	inac.qVM = G.NewTapeMachine(q.Graph(), G.BindDualValues(q.Learnables()...))

	targetQ, err := q.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target critic: %v", err)
	}
	inac.targetQ = targetQ.(*network.Ensemble)
	inac.targetQVM = G.NewTapeMachine(targetQ.Graph())
	inac.qInput = make([]float64, batch*(features+actionDims))
	inac.qNextInput = make([]float64, batch*(features+actionDims))

	// Create the state value critic
	trainV, err := network.NewMultiHeadMLP(features, batch, 1, G.NewGraph(),
		c.Hidden, c.biases(), init, c.Activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create value function: %v",
			err)
	}
	vTargets := G.NewMatrix(
		trainV.Graph(),
		tensor.Float64,
		G.WithName("VTargets"),
		G.WithShape(batch, 1),
		G.WithInit(G.Zeroes()),
	)
	vLoss := G.Must(G.Sub(trainV.Prediction()[0], vTargets))
	vLoss = G.Must(G.Square(vLoss))
	vLoss = G.Must(G.Mean(vLoss))
	G.Read(vLoss, &inac.vLossVal)
	if _, err := G.Grad(vLoss, trainV.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute value function "+
			"gradient: %v", err)
	}
	inac.trainV = trainV
	inac.vTargets = vTargets
	inac.trainVVM = G.NewTapeMachine(trainV.Graph(),
		G.BindDualValues(trainV.Learnables()...))

	if inac.v, err = trainV.CloneWithBatch(batch); err != nil {
		return nil, fmt.Errorf("new: could not create value function: %v",
			err)
	}
	inac.vVM = G.NewTapeMachine(inac.v.Graph())

	return inac, nil
}

// SelectAction returns an action at the given timestep
func (i *InAC) SelectAction(t ts.TimeStep) *mat.VecDense {
	return i.policy.SelectAction(t)
}

// Eval sets the agent to evaluation mode, in which the mean action of
// the actor is selected
func (i *InAC) Eval() {
	i.policy.Eval()
}

// Train sets the agent to training mode
func (i *InAC) Train() {
	i.policy.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (i *InAC) IsEval() bool {
	return i.policy.IsEval()
}

// Update performs a single update of each network of the agent using
// the argument batch and returns the losses and predictions of the
// update.
func (i *InAC) Update(b expreplay.Batch) (map[string]float64, error) {
	if b.Size != i.batchSize {
		return nil, fmt.Errorf("update: invalid batch size \n\twant(%v) "+
			"\n\thave(%v)", i.batchSize, b.Size)
	}
	metrics := make(map[string]float64, 6)

	behaviourLoss, err := i.updateBehaviour(b)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	metrics[BehaviourLoss] = behaviourLoss

	vLoss, vPred, err := i.updateV(b)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	metrics[VLoss] = vLoss
	metrics[VPred] = vPred

	qLoss, qPred, err := i.updateQ(b)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	metrics[QLoss] = qLoss
	metrics[QPred] = qPred

	actorLoss, err := i.updateActor(b)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	metrics[ActorLoss] = actorLoss

	if err := network.Polyak(i.targetQ, i.q, i.tau); err != nil {
		return nil, fmt.Errorf("update: could not update target critic: %v",
			err)
	}

	return metrics, nil
}

// updateBehaviour performs a maximum likelihood update of the
// behaviour policy on the actions of the batch
func (i *InAC) updateBehaviour(b expreplay.Batch) (float64, error) {
	if _, err := i.trainBehaviour.LogPdfOf(b.State, b.Action); err != nil {
		return 0, fmt.Errorf("updateBehaviour: %v", err)
	}
	if err := i.trainBehaviourVM.RunAll(); err != nil {
		return 0, fmt.Errorf("updateBehaviour: could not run VM: %v", err)
	}
	loss := scalar(i.behaviourLossVal)

	if err := i.trainBehaviourSolver.Step(i.trainBehaviour.Model()); err != nil {
		return 0, fmt.Errorf("updateBehaviour: could not step solver: %v",
			err)
	}
	i.trainBehaviourVM.Reset()

	if err := i.trainBehaviour.ProjectLogStd(); err != nil {
		return 0, fmt.Errorf("updateBehaviour: %v", err)
	}
	if err := network.Set(i.behaviour, i.trainBehaviour); err != nil {
		return 0, fmt.Errorf("updateBehaviour: %v", err)
	}

	return loss, nil
}

// updateV regresses the state value function towards the soft value
// of actions sampled from the actor
func (i *InAC) updateV(b expreplay.Batch) (float64, float64, error) {
	actions, logProb, err := i.sampler.Sample(b.State)
	if err != nil {
		return 0, 0, fmt.Errorf("updateV: %v", err)
	}
	minQ, err := i.targetMinQ(i.qInput, b.State, actions)
	if err != nil {
		return 0, 0, fmt.Errorf("updateV: %v", err)
	}

	targets := vTargets(minQ, logProb, i.temperature)

	if err := i.trainV.SetInput(b.State); err != nil {
		return 0, 0, fmt.Errorf("updateV: could not set states: %v", err)
	}
	if err := G.Let(i.vTargets, column(targets)); err != nil {
		return 0, 0, fmt.Errorf("updateV: could not set targets: %v", err)
	}
	if err := i.trainVVM.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("updateV: could not run VM: %v", err)
	}
	loss := scalar(i.vLossVal)
	pred := mean(i.trainV.Output()[0])

	if err := i.vSolver.Step(i.trainV.Model()); err != nil {
		return 0, 0, fmt.Errorf("updateV: could not step solver: %v", err)
	}
	i.trainVVM.Reset()

	if err := network.Set(i.v, i.trainV); err != nil {
		return 0, 0, fmt.Errorf("updateV: %v", err)
	}

	return loss, pred, nil
}

// updateQ regresses each critic of the ensemble towards the soft
// one-step bootstrapped target computed with the target critics
func (i *InAC) updateQ(b expreplay.Batch) (float64, float64, error) {
	nextActions, nextLogProb, err := i.sampler.Sample(b.NextState)
	if err != nil {
		return 0, 0, fmt.Errorf("updateQ: %v", err)
	}
	nextQ, err := i.targetMinQ(i.qNextInput, b.NextState, nextActions)
	if err != nil {
		return 0, 0, fmt.Errorf("updateQ: %v", err)
	}

	targets := qTargets(b.Reward, b.Discount, nextQ, nextLogProb, i.discount,
		i.temperature)

	concat(i.qInput, b.State, i.features, b.Action, i.actionDims)
	if err := i.q.SetInput(i.qInput); err != nil {
		return 0, 0, fmt.Errorf("updateQ: could not set input: %v", err)
	}
	if err := G.Let(i.qTargets, column(targets)); err != nil {
		return 0, 0, fmt.Errorf("updateQ: could not set targets: %v", err)
	}
	if err := i.qVM.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("updateQ: could not run VM: %v", err)
	}
	loss := scalar(i.qLossVal)
	pred := i.q.MeanOutput()

	if err := i.qSolver.Step(i.q.Model()); err != nil {
		return 0, 0, fmt.Errorf("updateQ: could not step solver: %v", err)
	}
	i.qVM.Reset()

	return loss, pred, nil
}

// updateActor performs a weighted maximum likelihood update of the
// actor on the actions of the batch. Each action is weighted by its
// in-sample softmax probability relative to the behaviour policy.
func (i *InAC) updateActor(b expreplay.Batch) (float64, error) {
	minQ, err := i.targetMinQ(i.qInput, b.State, b.Action)
	if err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	value, err := i.predictV(b.State)
	if err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	behaviourLogProb, err := i.behaviour.LogProb(b.State, b.Action)
	if err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}

	weights := actorWeights(minQ, value, behaviourLogProb, i.temperature,
		i.clipMin, i.clipMax)

	if _, err := i.trainPolicy.LogPdfOf(b.State, b.Action); err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	weightsTensor := tensor.NewDense(tensor.Float64, []int{b.Size},
		tensor.WithBacking(weights))
	if err := G.Let(i.weights, weightsTensor); err != nil {
		return 0, fmt.Errorf("updateActor: could not set weights: %v", err)
	}
	if err := i.trainPolicyVM.RunAll(); err != nil {
		return 0, fmt.Errorf("updateActor: could not run VM: %v", err)
	}
	loss := scalar(i.policyLossVal)

	if err := i.trainPolicySolver.Step(i.trainPolicy.Model()); err != nil {
		return 0, fmt.Errorf("updateActor: could not step solver: %v", err)
	}
	i.trainPolicyVM.Reset()

	if err := i.syncPolicy(); err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	return loss, nil
}

// vTargets returns the soft value targets minQ - temperature*logProb
// of actions sampled from the actor
func vTargets(minQ, logProb []float64, temperature float64) []float64 {
	targets := make([]float64, len(minQ))
	for j := range targets {
		targets[j] = minQ[j] - temperature*logProb[j]
	}
	return targets
}

// qTargets returns the soft one-step targets of the critic. A mask of
// 0 marks a transition into a terminal state, whose target is only its
// reward.
func qTargets(reward, mask, nextQ, nextLogProb []float64, discount,
	temperature float64) []float64 {
	targets := make([]float64, len(reward))
	for j := range targets {
		nextValue := nextQ[j] - temperature*nextLogProb[j]
		targets[j] = reward[j] + discount*mask[j]*nextValue
	}
	return targets
}

// actorWeights returns the in-sample softmax weight of each action,
// exp((minQ - value)/temperature - behaviourLogProb), clipped to
// [lo, hi]
func actorWeights(minQ, value, behaviourLogProb []float64, temperature,
	lo, hi float64) []float64 {
	weights := make([]float64, len(minQ))
	for j := range weights {
		w := math.Exp((minQ[j]-value[j])/temperature - behaviourLogProb[j])
		weights[j] = floatutils.Clip(w, lo, hi)
	}
	return weights
}

// syncPolicy projects the log standard deviation of the actor and
// copies its weights to the sampler and action selection policies
func (i *InAC) syncPolicy() error {
	if err := i.trainPolicy.ProjectLogStd(); err != nil {
		return err
	}
	if err := network.Set(i.sampler, i.trainPolicy); err != nil {
		return err
	}
	return network.Set(i.policy, i.trainPolicy)
}

// targetMinQ returns the minimum prediction of the target critics for
// each state-action pair. The buffer input is used to construct the
// input to the critics.
func (i *InAC) targetMinQ(input, states, actions []float64) ([]float64,
	error) {
	concat(input, states, i.features, actions, i.actionDims)
	if err := i.targetQ.SetInput(input); err != nil {
		return nil, fmt.Errorf("targetMinQ: could not set input: %v", err)
	}
	if err := i.targetQVM.RunAll(); err != nil {
		return nil, fmt.Errorf("targetMinQ: could not run VM: %v", err)
	}
	defer i.targetQVM.Reset()

	return i.targetQ.MinOutput(), nil
}

// predictV returns the prediction of the state value function in each
// state
func (i *InAC) predictV(states []float64) ([]float64, error) {
	if err := i.v.SetInput(states); err != nil {
		return nil, fmt.Errorf("predictV: could not set input: %v", err)
	}
	if err := i.vVM.RunAll(); err != nil {
		return nil, fmt.Errorf("predictV: could not run VM: %v", err)
	}
	defer i.vVM.Reset()

	out := i.v.Output()[0].Data().([]float64)
	return append([]float64{}, out...), nil
}

// checkpoint stores the weights of each network of an InAC agent
type checkpoint struct {
	Policy    [][]float64
	Behaviour [][]float64
	Q         [][]float64
	TargetQ   [][]float64
	V         [][]float64
}

// GobEncode implements the gob.GobEncoder interface. The weights of
// every network are encoded. The state of the solvers is not.
func (i *InAC) GobEncode() ([]byte, error) {
	c := checkpoint{
		Policy:    network.StateDict(i.trainPolicy),
		Behaviour: network.StateDict(i.trainBehaviour),
		Q:         network.StateDict(i.q),
		TargetQ:   network.StateDict(i.targetQ),
		V:         network.StateDict(i.trainV),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("gobEncode: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The receiver must
// have been created with New using a Config with the same network
// architecture as the encoded agent.
func (i *InAC) GobDecode(data []byte) error {
	if i.trainPolicy == nil {
		return fmt.Errorf("gobDecode: agent must be created with New " +
			"before decoding")
	}

	var c checkpoint
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}

	dicts := []struct {
		net   network.Parameterized
		state [][]float64
	}{
		{i.trainPolicy, c.Policy},
		{i.trainBehaviour, c.Behaviour},
		{i.q, c.Q},
		{i.targetQ, c.TargetQ},
		{i.trainV, c.V},
	}
	for _, d := range dicts {
		if err := network.LoadStateDict(d.net, d.state); err != nil {
			return fmt.Errorf("gobDecode: %v", err)
		}
	}

	if err := i.syncPolicy(); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	if err := network.Set(i.behaviour, i.trainBehaviour); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	if err := network.Set(i.v, i.trainV); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	return nil
}

// Close releases the resources of all VMs of the agent
func (i *InAC) Close() error {
	return multierr.Combine(
		i.policy.Close(),
		i.sampler.Close(),
		i.trainPolicy.Close(),
		i.trainPolicyVM.Close(),
		i.behaviour.Close(),
		i.trainBehaviour.Close(),
		i.trainBehaviourVM.Close(),
		i.qVM.Close(),
		i.targetQVM.Close(),
		i.vVM.Close(),
		i.trainVVM.Close(),
	)
}

// concat fills dst with the rows of the row major matrices a and b
// placed side by side
func concat(dst, a []float64, aCols int, b []float64, bCols int) {
	rows := len(a) / aCols
	cols := aCols + bCols
	for r := 0; r < rows; r++ {
		copy(dst[r*cols:r*cols+aCols], a[r*aCols:(r+1)*aCols])
		copy(dst[r*cols+aCols:(r+1)*cols], b[r*bCols:(r+1)*bCols])
	}
}

// column returns a column vector tensor holding data
func column(data []float64) *tensor.Dense {
	return tensor.NewDense(tensor.Float64, []int{len(data), 1},
		tensor.WithBacking(data))
}

// scalar returns the value of a scalar Gorgonia value
func scalar(v G.Value) float64 {
	switch data := v.Data().(type) {
	case float64:
		return data
	case []float64:
		return data[0]
	}
	panic(fmt.Sprintf("scalar: illegal value type %T", v.Data()))
}

// mean returns the mean of a Gorgonia value
func mean(v G.Value) float64 {
	data := v.Data().([]float64)
	return floats.Sum(data) / float64(len(data))
}
