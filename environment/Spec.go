package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/offlinerl/utils/floatutils"
)

// Kind identifies the quantity that a Spec describes
type Kind int

const (
	Action Kind = iota
	Observation
	Discount
	Reward
)

func (k Kind) String() string {
	switch k {
	case Action:
		return "Action"
	case Observation:
		return "Observation"
	case Discount:
		return "Discount"
	case Reward:
		return "Reward"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Spec describes a continuous, vector-valued quantity that an
// Environment consumes or produces. Element i of the quantity lies in
// [LowerBound[i], UpperBound[i]].
type Spec struct {
	Kind       Kind
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
}

// NewSpec returns a Spec of the given kind with elementwise bounds low
// and high. NewSpec panics if the bounds are empty, differ in length,
// or if some lower bound exceeds its upper bound.
func NewSpec(kind Kind, low, high []float64) Spec {
	if len(low) == 0 || len(low) != len(high) {
		panic(fmt.Sprintf("newSpec: %v bounds must be non-empty and of "+
			"equal length \n\thave(low: %v, high: %v)", kind, len(low),
			len(high)))
	}
	for i := range low {
		if low[i] > high[i] {
			panic(fmt.Sprintf("newSpec: %v lower bound %v exceeds upper "+
				"bound %v at index %v", kind, low[i], high[i], i))
		}
	}

	return Spec{
		Kind:       kind,
		LowerBound: mat.NewVecDense(len(low), append([]float64{}, low...)),
		UpperBound: mat.NewVecDense(len(high), append([]float64{}, high...)),
	}
}

// Dim returns the dimension of the quantity described by the Spec
func (s Spec) Dim() int {
	return s.LowerBound.Len()
}

// Bounded returns whether every bound of the Spec is finite
func (s Spec) Bounded() bool {
	return floatutils.Finite(s.LowerBound.RawVector().Data) &&
		floatutils.Finite(s.UpperBound.RawVector().Data)
}

// Contains returns whether v has the Spec's dimension and lies within
// its bounds
func (s Spec) Contains(v mat.Vector) bool {
	if v.Len() != s.Dim() {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); x < s.LowerBound.AtVec(i) ||
			x > s.UpperBound.AtVec(i) {
			return false
		}
	}
	return true
}
