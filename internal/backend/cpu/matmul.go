package cpu

import (
	"fmt"

	"github.com/graft-ml/graft/internal/parallel"
	"github.com/graft-ml/graft/internal/tensor"
)

// MatMul performs matrix multiplication: [M, K] @ [K, N] -> [M, N].
//
// Rows are computed in parallel; the inner loops are ordered i-k-j so the
// innermost walk is sequential over both b and the output row (cache friendly).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v @ %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}

	M, K, N := aShape[0], aShape[1], bShape[1]
	result := newFloat32(cpu, tensor.Shape{M, N})

	aData := a.AsFloat32()
	bData := b.AsFloat32()
	outData := result.AsFloat32()

	parallel.For(M, func(i int) {
		rowOut := outData[i*N : (i+1)*N]
		for k := 0; k < K; k++ {
			aik := aData[i*K+k]
			if aik == 0 {
				continue
			}
			rowB := bData[k*N : (k+1)*N]
			for j := range rowB {
				rowOut[j] += aik * rowB[j]
			}
		}
	}, cpu.par)

	return result
}
