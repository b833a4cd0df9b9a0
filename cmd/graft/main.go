// Package main provides the graft fine-tuning CLI.
//
// It expects a dataset directory with train/ and val/ splits, each
// organized as one subdirectory per class:
//
//	data/train/ants/xxx.jpg
//	data/train/bees/yyy.jpg
//	data/val/ants/zzz.jpg
//	...
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/graft-ml/graft/autodiff"
	"github.com/graft-ml/graft/backend/cpu"
	"github.com/graft-ml/graft/backend/webgpu"
	"github.com/graft-ml/graft/checkpoint"
	"github.com/graft-ml/graft/data"
	"github.com/graft-ml/graft/optim"
	"github.com/graft-ml/graft/tensor"
	"github.com/graft-ml/graft/train"
	"github.com/graft-ml/graft/vision"
)

const version = "v0.1.0-dev"

func main() {
	dataDir := flag.String("data", "./data", "Dataset root with train/ and val/ splits")
	modelName := flag.String("model", "resnet18", "Architecture: resnet18, alexnet, vgg11_bn, squeezenet1_0, densenet121, inception_v3")
	weightsDir := flag.String("weights", "", "Directory with pretrained .graft weights (empty = random init)")
	freeze := flag.Bool("freeze", false, "Freeze the backbone and train only the new head")
	epochs := flag.Int("epochs", 25, "Number of training epochs")
	batchSize := flag.Int("batch", 4, "Batch size")
	lr := flag.Float64("lr", 0.001, "SGD learning rate")
	momentum := flag.Float64("momentum", 0.9, "SGD momentum")
	out := flag.String("out", "model.graft", "Output checkpoint path")
	historyPath := flag.String("history", "", "Optional CSV path for per-epoch metrics")
	backendName := flag.String("backend", "cpu", "Compute backend: cpu or webgpu")
	seed := flag.Int64("seed", 0, "Random seed (0 = time-based)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("graft %s\n", version)
		return
	}

	family, err := vision.ParseFamily(*modelName)
	if err != nil {
		log.Fatalf("graft: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	cfg := runConfig{
		dataDir:    *dataDir,
		weightsDir: *weightsDir,
		family:     family,
		freeze:     *freeze,
		epochs:     *epochs,
		batchSize:  *batchSize,
		lr:         float32(*lr),
		momentum:   float32(*momentum),
		out:        *out,
		history:    *historyPath,
	}

	switch *backendName {
	case "cpu":
		err = run(autodiff.New(cpu.New()), cfg, rng)
	case "webgpu":
		gpu, gpuErr := webgpu.New()
		if gpuErr != nil {
			log.Fatalf("graft: %v", gpuErr)
		}
		defer gpu.Release()
		err = run(autodiff.New(gpu), cfg, rng)
	default:
		log.Fatalf("graft: unknown backend %q (want cpu or webgpu)", *backendName)
	}
	if err != nil {
		log.Fatalf("graft: %v", err)
	}
}

type runConfig struct {
	dataDir    string
	weightsDir string
	family     vision.Family
	freeze     bool
	epochs     int
	batchSize  int
	lr         float32
	momentum   float32
	out        string
	history    string
}

func run[B tensor.Backend](backend *autodiff.Backend[B], cfg runConfig, rng *rand.Rand) error {
	trainDir := filepath.Join(cfg.dataDir, "train")
	valDir := filepath.Join(cfg.dataDir, "val")

	classes, err := data.DiscoverClasses(trainDir)
	if err != nil {
		return err
	}
	trainSet, err := data.NewImageFolder(trainDir, classes)
	if err != nil {
		return err
	}
	valSet, err := data.NewImageFolder(valDir, classes)
	if err != nil {
		return err
	}

	model, err := vision.Adapt(vision.ModelSpec{
		Family:         cfg.family,
		NumClasses:     len(classes),
		FreezeBackbone: cfg.freeze,
		WeightsDir:     cfg.weightsDir,
	}, rng, backend)
	if err != nil {
		return err
	}

	size := model.InputSize
	trainLoader := data.NewLoader(trainSet, cfg.batchSize, size, data.TrainTransform(size), rng)
	valLoader := data.NewLoader(valSet, cfg.batchSize, size, data.EvalTransform(size), rng)

	fmt.Printf("graft %s\n", version)
	fmt.Printf("model: %s (%d classes, input %dx%d)\n", cfg.family, len(classes), size, size)
	fmt.Printf("data:  %d train / %d val samples in %d classes\n", trainSet.Len(), valSet.Len(), len(classes))
	fmt.Printf("backend: %s\n", backend.Name())
	trainable := model.TrainableParameters()
	fmt.Printf("trainable parameters: %d of %d tensors\n\n", len(trainable), len(model.Parameters()))

	raws := make([]*tensor.RawTensor, len(trainable))
	for i, p := range trainable {
		raws[i] = p.Raw()
	}
	optimizer := optim.NewSGD(raws, cfg.lr, cfg.momentum)

	result, err := train.Run(backend, model, trainLoader, valLoader, optimizer, train.Config{
		Epochs: cfg.epochs,
		Out:    os.Stdout,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n", result.Summary())

	meta := &checkpoint.TrainingMeta{
		Epoch:        result.BestEpoch,
		ValAccuracy:  result.BestAccuracy,
		NumClasses:   len(classes),
		Architecture: cfg.family.String(),
	}
	if result.BestEpoch > 0 {
		meta.ValLoss = result.History[result.BestEpoch-1].ValLoss
	}
	header := checkpoint.Header{
		ModelType: cfg.family.String(),
		CreatedAt: time.Now().UTC(),
		Metadata:  map[string]string{"classes": strings.Join(classes, ",")},
		Training:  meta,
	}
	if err := checkpoint.SaveWithHeader(cfg.out, result.Best, header); err != nil {
		return err
	}
	fmt.Printf("saved best weights to %s\n", cfg.out)

	if cfg.history != "" {
		if err := writeHistory(cfg.history, result.History); err != nil {
			return err
		}
		fmt.Printf("wrote epoch history to %s\n", cfg.history)
	}
	return nil
}

// writeHistory dumps per-epoch metrics as CSV for external plotting.
func writeHistory(path string, history []train.EpochMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"epoch", "train_loss", "train_acc", "val_loss", "val_acc", "seconds"}); err != nil {
		return err
	}
	for _, m := range history {
		record := []string{
			strconv.Itoa(m.Epoch),
			strconv.FormatFloat(m.TrainLoss, 'f', 6, 64),
			strconv.FormatFloat(m.TrainAccuracy, 'f', 6, 64),
			strconv.FormatFloat(m.ValLoss, 'f', 6, 64),
			strconv.FormatFloat(m.ValAccuracy, 'f', 6, 64),
			strconv.FormatFloat(m.Duration.Seconds(), 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
