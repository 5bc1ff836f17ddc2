package initwfn

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// sampler returns a Gorgonia InitWFn that fills weights with samples
// from a distribution whose parameters depend on the fan in and fan
// out of the weights being initialized
func sampler(dist func(fanIn, fanOut float64) distuv.Rander) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s)
		d := dist(fanIn, fanOut)

		size := tensor.Shape(s).TotalSize()
		switch dt {
		case tensor.Float64:
			weights := make([]float64, size)
			for i := range weights {
				weights[i] = d.Rand()
			}
			return weights

		case tensor.Float32:
			weights := make([]float32, size)
			for i := range weights {
				weights[i] = float32(d.Rand())
			}
			return weights
		}
		panic(fmt.Sprintf("sampler: unsupported dtype %v", dt))
	}
}

// fans returns the fan in and fan out of weights with shape s. Vectors
// are treated as row vectors.
func fans(s []int) (float64, float64) {
	switch len(s) {
	case 0:
		return 1, 1
	case 1:
		return 1, float64(s[0])
	}

	receptive := 1
	for _, dim := range s[2:] {
		receptive *= dim
	}
	return float64(s[0] * receptive), float64(s[1] * receptive)
}
