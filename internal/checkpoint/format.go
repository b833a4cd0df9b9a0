// Package checkpoint reads and writes model weights in the .graft
// format: a 64-byte fixed header, a JSON metadata block, then raw
// tensor data aligned to 64 bytes and covered by a SHA-256 checksum.
package checkpoint

import (
	"time"

	"github.com/graft-ml/graft/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "GRFT"
	FormatVersion   = 1
	FixedHeaderSize = 64   // magic, version, flags, sizes, checksum
	DataAlignment   = 64   // tensor data starts on a 64-byte boundary
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // checksum position in the fixed header

	// MaxHeaderSize bounds the JSON header so a corrupted size field
	// cannot trigger a huge allocation.
	MaxHeaderSize = 100 << 20
)

// Data type names used in headers.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
	DTypeUint8   = "uint8"
)

// Header is the JSON metadata block of a .graft file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ModelType     string            `json:"model_type"` // e.g. "resnet18"
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Training      *TrainingMeta     `json:"training,omitempty"`
}

// TrainingMeta records how the weights in a checkpoint were produced.
type TrainingMeta struct {
	Epoch        int     `json:"epoch"`
	ValLoss      float64 `json:"val_loss"`
	ValAccuracy  float64 `json:"val_accuracy"`
	NumClasses   int     `json:"num_classes"`
	Architecture string  `json:"architecture"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	case tensor.Uint8:
		return DTypeUint8
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeUint8:
		return tensor.Uint8, true
	default:
		return 0, false
	}
}
