// Package agent defines the interfaces of offline agents and their
// policies, and a registry of JSON serializable agent configurations.
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
	"github.com/samuelfneumann/offlinerl/timestep"
)

// Agent learns from batches of a fixed dataset with its Learner. Its
// Policy is only used to evaluate what has been learned.
type Agent interface {
	Learner
	Policy
}

// Closer is an Agent holding resources, such as computational graph
// VMs, which must be released once it is no longer needed
type Closer interface {
	Agent
	Close() error
}

// Learner updates an agent's weights from batches of transitions
type Learner interface {
	// Update performs a single update with b and returns metrics of
	// the update keyed by name
	Update(b expreplay.Batch) (map[string]float64, error)
}

// Policy selects actions. In evaluation mode, a Policy acts
// deterministically where it can.
type Policy interface {
	SelectAction(t timestep.TimeStep) *mat.VecDense
	Eval()
	Train()
	IsEval() bool
}
