package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// GlorotUConfig draws weights from U(-l, l) with
// l = gain * sqrt(6 / (fanIn + fanOut))
type GlorotUConfig struct{ Gain float64 }

// GlorotNConfig draws weights from N(0, σ²) with
// σ = gain * sqrt(2 / (fanIn + fanOut))
type GlorotNConfig struct{ Gain float64 }

// HeUConfig draws weights from U(-l, l) with l = gain * sqrt(3 / fanIn)
type HeUConfig struct{ Gain float64 }

// HeNConfig draws weights from N(0, σ²) with σ = gain / sqrt(fanIn)
type HeNConfig struct{ Gain float64 }

// GaussianConfig draws weights from N(Mean, StdDev²)
type GaussianConfig struct{ Mean, StdDev float64 }

// UniformConfig draws weights from U(Low, High)
type UniformConfig struct{ Low, High float64 }

// ConstantConfig sets every weight to Value
type ConstantConfig struct{ Value float64 }

// NewGlorotU returns a Glorot uniform initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{gain})
}

// NewGlorotN returns a Glorot normal initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{gain})
}

// NewHeU returns a He uniform initializer
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{gain})
}

// NewHeN returns a He normal initializer
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{gain})
}

// NewGaussian returns an initializer drawing from a fixed Gaussian
func NewGaussian(mean, stddev float64) (*InitWFn, error) {
	return newInitWFn(GaussianConfig{mean, stddev})
}

// NewUniform returns an initializer drawing from a fixed uniform
// distribution
func NewUniform(low, high float64) (*InitWFn, error) {
	return newInitWFn(UniformConfig{low, high})
}

// NewConstant returns an initializer setting every weight to value
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{value})
}

func (g GlorotUConfig) Type() Type { return GlorotU }
func (g GlorotNConfig) Type() Type { return GlorotN }
func (h HeUConfig) Type() Type { return HeU }
func (h HeNConfig) Type() Type { return HeN }
func (g GaussianConfig) Type() Type { return Gaussian }
func (u UniformConfig) Type() Type { return Uniform }
func (c ConstantConfig) Type() Type { return Constant }

func (g GlorotUConfig) Validate() error { return validateGain(g.Gain) }
func (g GlorotNConfig) Validate() error { return validateGain(g.Gain) }
func (h HeUConfig) Validate() error { return validateGain(h.Gain) }
func (h HeNConfig) Validate() error { return validateGain(h.Gain) }
func (c ConstantConfig) Validate() error { return nil }

func (g GaussianConfig) Validate() error {
	if g.StdDev <= 0 {
		return fmt.Errorf("validate: standard deviation must be positive "+
			"but got %v", g.StdDev)
	}
	return nil
}

func (u UniformConfig) Validate() error {
	if u.Low >= u.High {
		return fmt.Errorf("validate: empty interval [%v, %v)", u.Low, u.High)
	}
	return nil
}

func validateGain(gain float64) error {
	if gain <= 0 {
		return fmt.Errorf("validate: gain must be positive but got %v", gain)
	}
	return nil
}

// Create implements the Config interface
func (g GlorotUConfig) Create(src rand.Source) G.InitWFn {
	return sampler(func(fanIn, fanOut float64) distuv.Rander {
		limit := g.Gain * math.Sqrt(6/(fanIn+fanOut))
		return distuv.Uniform{Min: -limit, Max: limit, Src: src}
	})
}

// Create implements the Config interface
func (g GlorotNConfig) Create(src rand.Source) G.InitWFn {
	return sampler(func(fanIn, fanOut float64) distuv.Rander {
		std := g.Gain * math.Sqrt(2/(fanIn+fanOut))
		return distuv.Normal{Mu: 0, Sigma: std, Src: src}
	})
}

// Create implements the Config interface
func (h HeUConfig) Create(src rand.Source) G.InitWFn {
	return sampler(func(fanIn, _ float64) distuv.Rander {
		limit := h.Gain * math.Sqrt(3/fanIn)
		return distuv.Uniform{Min: -limit, Max: limit, Src: src}
	})
}

// Create implements the Config interface
func (h HeNConfig) Create(src rand.Source) G.InitWFn {
	return sampler(func(fanIn, _ float64) distuv.Rander {
		return distuv.Normal{Mu: 0, Sigma: h.Gain / math.Sqrt(fanIn), Src: src}
	})
}

// Create implements the Config interface
func (g GaussianConfig) Create(src rand.Source) G.InitWFn {
	return sampler(func(_, _ float64) distuv.Rander {
		return distuv.Normal{Mu: g.Mean, Sigma: g.StdDev, Src: src}
	})
}

// Create implements the Config interface
func (u UniformConfig) Create(src rand.Source) G.InitWFn {
	return sampler(func(_, _ float64) distuv.Rander {
		return distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
	})
}

// Create implements the Config interface
func (c ConstantConfig) Create(rand.Source) G.InitWFn {
	return G.ValuesOf(c.Value)
}
