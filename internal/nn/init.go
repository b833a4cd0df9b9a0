package nn

import (
	"math"
	"math/rand"

	"github.com/graft-ml/graft/internal/tensor"
)

// XavierUniform fills a new tensor from U(-a, a) with
// a = sqrt(6 / (fanIn + fanOut)). Suited to layers followed by
// symmetric activations.
func XavierUniform[B tensor.Backend](shape tensor.Shape, fanIn, fanOut int, rng *rand.Rand, b B) *tensor.Tensor[float32, B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return uniform[B](shape, bound, rng, b)
}

// KaimingUniform fills a new tensor from U(-a, a) with
// a = sqrt(6 / fanIn). Suited to layers followed by ReLU.
func KaimingUniform[B tensor.Backend](shape tensor.Shape, fanIn int, rng *rand.Rand, b B) *tensor.Tensor[float32, B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn)))
	return uniform[B](shape, bound, rng, b)
}

func uniform[B tensor.Backend](shape tensor.Shape, bound float32, rng *rand.Rand, b B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = (rng.Float32()*2 - 1) * bound
	}
	return t
}
