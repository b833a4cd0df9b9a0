package train_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graft-ml/graft/internal/autodiff"
	"github.com/graft-ml/graft/internal/backend/cpu"
	"github.com/graft-ml/graft/internal/data"
	"github.com/graft-ml/graft/internal/optim"
	"github.com/graft-ml/graft/internal/tensor"
	"github.com/graft-ml/graft/internal/train"
	"github.com/graft-ml/graft/internal/vision"
)

// writeSplit fills root/<split> with solid-color class images so the
// two classes are trivially separable.
func writeSplit(t *testing.T, root, split string, perClass int) {
	t.Helper()
	colors := map[string]color.RGBA{
		"red":  {R: 230, G: 20, B: 20, A: 255},
		"blue": {R: 20, G: 20, B: 230, A: 255},
	}
	for class, c := range colors {
		dir := filepath.Join(root, split, class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for i := 0; i < perClass; i++ {
			img := image.NewRGBA(image.Rect(0, 0, 32, 32))
			for y := 0; y < 32; y++ {
				for x := 0; x < 32; x++ {
					img.Set(x, y, c)
				}
			}
			f, err := os.Create(filepath.Join(dir, "s"+strconv.Itoa(i)+".png"))
			require.NoError(t, err)
			require.NoError(t, png.Encode(f, img))
			require.NoError(t, f.Close())
		}
	}
}

// newRun builds the model, loaders and optimizer for a small
// SqueezeNet run over the synthetic dataset.
func newRun(t *testing.T, root string) (*autodiff.AutodiffBackend[*cpu.CPUBackend], *vision.AdaptedModel[*autodiff.AutodiffBackend[*cpu.CPUBackend]], *data.Loader, *data.Loader, optim.Optimizer) {
	t.Helper()
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(11))

	model, err := vision.Adapt(vision.ModelSpec{
		Family:     vision.SqueezeNetFamily,
		NumClasses: 2,
	}, rng, backend)
	require.NoError(t, err)

	classes, err := data.DiscoverClasses(filepath.Join(root, "train"))
	require.NoError(t, err)
	trainDS, err := data.NewImageFolder(filepath.Join(root, "train"), classes)
	require.NoError(t, err)
	valDS, err := data.NewImageFolder(filepath.Join(root, "val"), classes)
	require.NoError(t, err)

	const size = 64
	trainLoader := data.NewLoader(trainDS, 2, size, data.TrainTransform(size), rng)
	valLoader := data.NewLoader(valDS, 2, size, data.EvalTransform(size), rng)

	var raws []*tensor.RawTensor
	for _, p := range model.TrainableParameters() {
		raws = append(raws, p.Raw())
	}
	return backend, model, trainLoader, valLoader, optim.NewSGD(raws, 0.01, 0.9)
}

func TestRunCompletesEpochs(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 3)
	writeSplit(t, root, "val", 2)

	backend, model, trainLoader, valLoader, optimizer := newRun(t, root)

	var out bytes.Buffer
	result, err := train.Run(backend, model, trainLoader, valLoader, optimizer, train.Config{
		Epochs: 2,
		Out:    &out,
	})
	require.NoError(t, err)

	require.Len(t, result.History, 2)
	for i, m := range result.History {
		assert.Equal(t, i+1, m.Epoch)
		assert.GreaterOrEqual(t, m.ValAccuracy, 0.0)
		assert.LessOrEqual(t, m.ValAccuracy, 1.0)
	}
	require.NotNil(t, result.Best)
	assert.NotEmpty(t, result.Summary())

	logs := out.String()
	assert.Contains(t, logs, "Epoch 1/2")
	assert.Contains(t, logs, "Epoch 2/2")
	assert.Contains(t, logs, "Best val acc")
}

func TestRunRestoresBestWeights(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 2)
	writeSplit(t, root, "val", 2)

	backend, model, trainLoader, valLoader, optimizer := newRun(t, root)

	var out bytes.Buffer
	result, err := train.Run(backend, model, trainLoader, valLoader, optimizer, train.Config{
		Epochs: 1,
		Out:    &out,
	})
	require.NoError(t, err)

	// After the run the live model holds the best snapshot's values.
	state := model.StateDict()
	for key, want := range result.Best {
		got, ok := state[key]
		require.True(t, ok, key)
		assert.Equal(t, want.Data(), got.Data(), key)
	}
}

func TestRunBestEpochTracking(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 2)
	writeSplit(t, root, "val", 2)

	backend, model, trainLoader, valLoader, optimizer := newRun(t, root)

	var out bytes.Buffer
	result, err := train.Run(backend, model, trainLoader, valLoader, optimizer, train.Config{
		Epochs: 2,
		Out:    &out,
	})
	require.NoError(t, err)

	if result.BestEpoch == 0 {
		// No epoch improved: best accuracy stays at its zero value and
		// the initial snapshot is kept.
		assert.Zero(t, result.BestAccuracy)
	} else {
		assert.Equal(t, result.BestAccuracy, result.History[result.BestEpoch-1].ValAccuracy)
		// Earlier epochs must be strictly worse, or the tie rule was
		// violated.
		for _, m := range result.History[:result.BestEpoch-1] {
			assert.Less(t, m.ValAccuracy, result.BestAccuracy)
		}
	}
}

func TestRunRejectsZeroEpochs(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 1)
	writeSplit(t, root, "val", 1)

	backend, model, trainLoader, valLoader, optimizer := newRun(t, root)

	_, err := train.Run(backend, model, trainLoader, valLoader, optimizer, train.Config{Epochs: 0})
	assert.Error(t, err)
}

func TestRunRequiresGradientBackend(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 1)
	writeSplit(t, root, "val", 1)

	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	model, err := vision.Adapt(vision.ModelSpec{
		Family:     vision.SqueezeNetFamily,
		NumClasses: 2,
	}, rng, backend)
	require.NoError(t, err)

	classes := []string{"blue", "red"}
	trainDS, err := data.NewImageFolder(filepath.Join(root, "train"), classes)
	require.NoError(t, err)
	valDS, err := data.NewImageFolder(filepath.Join(root, "val"), classes)
	require.NoError(t, err)
	trainLoader := data.NewLoader(trainDS, 1, 64, nil, rng)
	valLoader := data.NewLoader(valDS, 1, 64, nil, rng)

	_, err = train.Run(backend, model, trainLoader, valLoader, nil, train.Config{Epochs: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not record gradients")
}

func TestSummaryEmptyHistory(t *testing.T) {
	r := &train.Result{}
	assert.Equal(t, "no epochs recorded", r.Summary())
}

type cpuAutodiff = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// zeroLogitsModel emits all-zero logits for every input, so each
// cross-entropy term is exactly ln(classes). That makes the combined
// loss checkable against a closed-form value.
type zeroLogitsModel struct {
	backend cpuAutodiff
	classes int
	withAux bool

	forwardCalls int
	auxCalls     int
}

func (m *zeroLogitsModel) logits(n int) *tensor.Tensor[float32, cpuAutodiff] {
	return tensor.Zeros[float32](tensor.Shape{n, m.classes}, m.backend)
}

func (m *zeroLogitsModel) Forward(x *tensor.Tensor[float32, cpuAutodiff]) *tensor.Tensor[float32, cpuAutodiff] {
	m.forwardCalls++
	return m.logits(x.Shape()[0])
}

func (m *zeroLogitsModel) ForwardWithAux(x *tensor.Tensor[float32, cpuAutodiff]) (*tensor.Tensor[float32, cpuAutodiff], *tensor.Tensor[float32, cpuAutodiff]) {
	m.auxCalls++
	n := x.Shape()[0]
	if !m.withAux {
		return m.logits(n), nil
	}
	return m.logits(n), m.logits(n)
}

func (m *zeroLogitsModel) SetTraining(bool) {}

func (m *zeroLogitsModel) StateDict() map[string]*tensor.RawTensor { return nil }

func (m *zeroLogitsModel) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

func TestTrainLossAddsWeightedAuxTerm(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 2) // 4 images, batch 2 -> 2 batches
	writeSplit(t, root, "val", 2)   // 4 images, batch 2 -> 2 batches

	backend := autodiff.New(cpu.New())
	model := &zeroLogitsModel{backend: backend, classes: 2, withAux: true}

	classes := []string{"blue", "red"}
	trainDS, err := data.NewImageFolder(filepath.Join(root, "train"), classes)
	require.NoError(t, err)
	valDS, err := data.NewImageFolder(filepath.Join(root, "val"), classes)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	trainLoader := data.NewLoader(trainDS, 2, 16, nil, rng)
	valLoader := data.NewLoader(valDS, 2, 16, nil, rng)

	var out bytes.Buffer
	result, err := train.Run(backend, model, trainLoader, valLoader,
		optim.NewSGD(nil, 0.01, 0), train.Config{Epochs: 1, Out: &out})
	require.NoError(t, err)

	// Zero logits over 2 classes give cross-entropy ln 2 for both the
	// primary and auxiliary heads, so the combined training loss is
	// ln 2 + 0.4*ln 2. Validation ignores the auxiliary head and stays
	// at plain ln 2.
	ln2 := math.Log(2)
	require.Len(t, result.History, 1)
	assert.InDelta(t, 1.4*ln2, result.History[0].TrainLoss, 1e-4)
	assert.InDelta(t, ln2, result.History[0].ValLoss, 1e-4)

	// The training phase goes through ForwardWithAux, the validation
	// phase through Forward only.
	assert.Equal(t, 2, model.auxCalls)
	assert.Equal(t, 2, model.forwardCalls)
}

func TestTrainLossWithoutAuxHead(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 2)
	writeSplit(t, root, "val", 2)

	backend := autodiff.New(cpu.New())
	model := &zeroLogitsModel{backend: backend, classes: 2, withAux: false}

	classes := []string{"blue", "red"}
	trainDS, err := data.NewImageFolder(filepath.Join(root, "train"), classes)
	require.NoError(t, err)
	valDS, err := data.NewImageFolder(filepath.Join(root, "val"), classes)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	trainLoader := data.NewLoader(trainDS, 2, 16, nil, rng)
	valLoader := data.NewLoader(valDS, 2, 16, nil, rng)

	var out bytes.Buffer
	result, err := train.Run(backend, model, trainLoader, valLoader,
		optim.NewSGD(nil, 0.01, 0), train.Config{Epochs: 1, Out: &out})
	require.NoError(t, err)

	// A nil auxiliary output must leave the loss at plain ln 2.
	assert.InDelta(t, math.Log(2), result.History[0].TrainLoss, 1e-4)
}

// countingOptimizer records Step calls without updating anything.
type countingOptimizer struct {
	steps int
}

func (o *countingOptimizer) Step(map[*tensor.RawTensor]*tensor.RawTensor) { o.steps++ }
func (o *countingOptimizer) ZeroGrad()                                    {}
func (o *countingOptimizer) GetLR() float32                               { return 0 }
func (o *countingOptimizer) StateDict() map[string]*tensor.RawTensor      { return nil }

func TestRunStepsOnlyOnTrainBatches(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", 3) // 6 images, batch 2 -> 3 batches
	writeSplit(t, root, "val", 2)   // 4 images, batch 2 -> 2 batches

	backend, model, trainLoader, valLoader, _ := newRun(t, root)
	counter := &countingOptimizer{}

	var out bytes.Buffer
	_, err := train.Run(backend, model, trainLoader, valLoader, counter, train.Config{
		Epochs: 2,
		Out:    &out,
	})
	require.NoError(t, err)

	// 3 train batches per epoch, 2 epochs, zero steps from validation.
	assert.Equal(t, 6, counter.steps)
}
