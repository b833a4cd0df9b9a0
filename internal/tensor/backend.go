package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - CPU: Pure Go with goroutine-parallel kernels
//   - WebGPU: GPU compute for the forward ops that have WGSL kernels
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix multiplication: [M, K] @ [K, N] -> [M, N]
	MatMul(a, b *RawTensor) *RawTensor

	// Convolutional operations.
	// Conv2D takes independent height/width padding so that asymmetric
	// kernels (1x7, 7x1) pad correctly.
	Conv2D(input, kernel *RawTensor, stride, padH, padW int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	AvgPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor

	// Activation functions
	ReLU(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                            // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension
	Argmax(x *RawTensor, dim int) *RawTensor                // index of maximum value along dimension

	// Manipulation operations
	Cat(tensors []*RawTensor, dim int) *RawTensor // concatenate along dimension

	// Backward hooks used by autodiff ops. Orchestration lives in the ops;
	// the heavy lifting lives here next to the forward kernels.
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padH, padW int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padH, padW int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride, padding int) *RawTensor
	AvgPool2DBackward(input, grad *RawTensor, kernelSize, stride, padding int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
