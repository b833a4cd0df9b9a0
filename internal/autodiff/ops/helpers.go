package ops

import "github.com/graft-ml/graft/internal/tensor"

// unbroadcast reduces grad back to the given shape by summing over the
// dimensions that were expanded during broadcasting. Leading dimensions
// that do not exist in the target are summed away first, then any
// dimension of size 1 in the target is summed with keepDim.
func unbroadcast(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}

	out := grad
	for len(out.Shape()) > len(shape) {
		out = backend.SumDim(out, 0, false)
	}
	for dim, size := range shape {
		if size == 1 && out.Shape()[dim] != 1 {
			out = backend.SumDim(out, dim, true)
		}
	}
	if !out.Shape().Equal(shape) {
		out = backend.Reshape(out, shape.Clone())
	}
	return out
}
