package vision_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graft-ml/graft/internal/backend/cpu"
	"github.com/graft-ml/graft/internal/checkpoint"
	"github.com/graft-ml/graft/internal/pretrained"
	"github.com/graft-ml/graft/internal/tensor"
	"github.com/graft-ml/graft/internal/vision"
)

func TestParseFamily(t *testing.T) {
	for _, f := range vision.Families() {
		got, err := vision.ParseFamily(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := vision.ParseFamily("resnet50")
	assert.ErrorIs(t, err, vision.ErrUnsupportedFamily)
}

func TestFamilyProperties(t *testing.T) {
	for _, f := range vision.Families() {
		if f == vision.InceptionV3Family {
			assert.Equal(t, 299, f.InputSize())
			assert.True(t, f.HasAuxHead())
		} else {
			assert.Equal(t, 224, f.InputSize(), f.String())
			assert.False(t, f.HasAuxHead(), f.String())
		}
	}
}

// headShapes maps each family to the state dict key and shape of its
// replacement classifier for a 7-class task.
func TestAdaptReplacesHead(t *testing.T) {
	b := cpu.New()

	cases := []struct {
		family vision.Family
		key    string
		shape  tensor.Shape
	}{
		{vision.ResNet18Family, "fc.weight", tensor.Shape{512, 7}},
		{vision.AlexNetFamily, "classifier.6.weight", tensor.Shape{4096, 7}},
		{vision.VGG11Family, "classifier.6.weight", tensor.Shape{4096, 7}},
		{vision.SqueezeNetFamily, "classifier.1.weight", tensor.Shape{7, 512, 1, 1}},
		{vision.DenseNet121Family, "classifier.weight", tensor.Shape{1024, 7}},
		{vision.InceptionV3Family, "fc.weight", tensor.Shape{2048, 7}},
	}
	for _, tc := range cases {
		t.Run(tc.family.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			model, err := vision.Adapt(vision.ModelSpec{Family: tc.family, NumClasses: 7}, rng, b)
			require.NoError(t, err)

			state := model.StateDict()
			head, ok := state[tc.key]
			require.True(t, ok, "missing %s", tc.key)
			assert.True(t, head.Shape().Equal(tc.shape), "got %v want %v", head.Shape(), tc.shape)

			assert.Equal(t, tc.family.InputSize(), model.InputSize)
			assert.Equal(t, 7, model.NumClasses)
		})
	}
}

func TestAdaptInceptionAuxHead(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))

	model, err := vision.Adapt(vision.ModelSpec{Family: vision.InceptionV3Family, NumClasses: 5}, rng, b)
	require.NoError(t, err)
	assert.True(t, model.HasAuxHead)

	aux, ok := model.StateDict()["aux_logits.fc.weight"]
	require.True(t, ok)
	assert.True(t, aux.Shape().Equal(tensor.Shape{768, 5}))
}

func TestAdaptFreezeBackbone(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))

	model, err := vision.Adapt(vision.ModelSpec{
		Family:         vision.ResNet18Family,
		NumClasses:     3,
		FreezeBackbone: true,
	}, rng, b)
	require.NoError(t, err)

	trainable := model.TrainableParameters()
	// Only the fresh fc layer trains: its weight and bias.
	assert.Len(t, trainable, 2)
	assert.Less(t, len(trainable), len(model.Parameters()))
	for _, p := range trainable {
		assert.True(t, p.Trainable())
	}
}

func TestAdaptWithoutFreezeAllTrainable(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))

	model, err := vision.Adapt(vision.ModelSpec{Family: vision.SqueezeNetFamily, NumClasses: 3}, rng, b)
	require.NoError(t, err)
	assert.Equal(t, len(model.Parameters()), len(model.TrainableParameters()))
}

func TestAdaptErrors(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))

	_, err := vision.Adapt(vision.ModelSpec{Family: vision.Family(99), NumClasses: 2}, rng, b)
	assert.ErrorIs(t, err, vision.ErrUnsupportedFamily)

	_, err = vision.Adapt(vision.ModelSpec{Family: vision.ResNet18Family, NumClasses: 0}, rng, b)
	assert.Error(t, err)
}

func TestAdaptMissingWeights(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))

	_, err := vision.Adapt(vision.ModelSpec{
		Family:     vision.ResNet18Family,
		NumClasses: 2,
		WeightsDir: t.TempDir(),
	}, rng, b)
	assert.ErrorIs(t, err, pretrained.ErrWeightsNotFound)
}

func TestAdaptLoadsPretrainedWeights(t *testing.T) {
	b := cpu.New()
	dir := t.TempDir()

	// Build a stock SqueezeNet, save its state as pretrained weights,
	// then adapt from that directory. Backbone tensors must match the
	// saved weights while the head is freshly initialized.
	rng := rand.New(rand.NewSource(7))
	stock := vision.NewSqueezeNet[*cpu.CPUBackend](1000, rng, b)
	saved := stock.StateDict()
	require.NoError(t, checkpoint.Save(
		pretrained.Path(dir, "squeezenet1_0"), saved, "squeezenet1_0"))

	rng2 := rand.New(rand.NewSource(99))
	model, err := vision.Adapt(vision.ModelSpec{
		Family:     vision.SqueezeNetFamily,
		NumClasses: 2,
		WeightsDir: dir,
	}, rng2, b)
	require.NoError(t, err)

	got := model.StateDict()
	key := "features.0.weight"
	assert.Equal(t, saved[key].AsFloat32(), got[key].AsFloat32())

	head := got["classifier.1.weight"]
	assert.True(t, head.Shape().Equal(tensor.Shape{2, 512, 1, 1}))
}

func TestSqueezeNetForward(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))

	model, err := vision.Adapt(vision.ModelSpec{Family: vision.SqueezeNetFamily, NumClasses: 4}, rng, b)
	require.NoError(t, err)
	model.SetTraining(false)

	x := tensor.Rand(tensor.Shape{1, 3, 64, 64}, rng, b)
	logits := model.Forward(x)
	assert.True(t, logits.Shape().Equal(tensor.Shape{1, 4}))

	// No auxiliary head: ForwardWithAux returns nil for the second
	// result.
	main, aux := model.ForwardWithAux(x)
	assert.True(t, main.Shape().Equal(tensor.Shape{1, 4}))
	assert.Nil(t, aux)
}

func TestResNet18Forward(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))

	model, err := vision.Adapt(vision.ModelSpec{Family: vision.ResNet18Family, NumClasses: 3}, rng, b)
	require.NoError(t, err)
	model.SetTraining(false)

	x := tensor.Rand(tensor.Shape{1, 3, 64, 64}, rng, b)
	logits := model.Forward(x)
	assert.True(t, logits.Shape().Equal(tensor.Shape{1, 3}))
}

func TestDenseNet121Forward(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))

	model, err := vision.Adapt(vision.ModelSpec{Family: vision.DenseNet121Family, NumClasses: 5}, rng, b)
	require.NoError(t, err)
	model.SetTraining(false)

	x := tensor.Rand(tensor.Shape{1, 3, 64, 64}, rng, b)
	logits := model.Forward(x)
	assert.True(t, logits.Shape().Equal(tensor.Shape{1, 5}))
}

func TestInceptionAuxClassifierForward(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))

	// The auxiliary classifier attaches to the 17x17/768 grid: pool to
	// 5x5, 1x1 and 5x5 convolutions, then a linear layer.
	aux := vision.NewInceptionAux[*cpu.CPUBackend](768, 3, rng, b)
	aux.SetTraining(false)

	x := tensor.Rand(tensor.Shape{2, 768, 17, 17}, rng, b)
	logits := aux.Forward(x)
	assert.True(t, logits.Shape().Equal(tensor.Shape{2, 3}))
}

func TestInceptionV3ForwardWithAux(t *testing.T) {
	if testing.Short() {
		t.Skip("full 299x299 forward pass")
	}
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))

	model, err := vision.Adapt(vision.ModelSpec{Family: vision.InceptionV3Family, NumClasses: 4}, rng, b)
	require.NoError(t, err)
	model.SetTraining(true)

	x := tensor.Rand(tensor.Shape{1, 3, 299, 299}, rng, b)
	main, aux := model.ForwardWithAux(x)
	assert.True(t, main.Shape().Equal(tensor.Shape{1, 4}))
	require.NotNil(t, aux)
	assert.True(t, aux.Shape().Equal(tensor.Shape{1, 4}))
}

func TestAdaptedModelStateDictRoundTrip(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(5))

	src, err := vision.Adapt(vision.ModelSpec{Family: vision.AlexNetFamily, NumClasses: 3}, rng, b)
	require.NoError(t, err)

	rng2 := rand.New(rand.NewSource(6))
	dst, err := vision.Adapt(vision.ModelSpec{Family: vision.AlexNetFamily, NumClasses: 3}, rng2, b)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	key := "classifier.6.weight"
	assert.Equal(t, src.StateDict()[key].AsFloat32(), dst.StateDict()[key].AsFloat32())
}
