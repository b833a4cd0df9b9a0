package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/graft-ml/graft/internal/tensor"
)

// Load reads a .graft file, verifies its checksum, and returns the
// state dictionary and header. Tensors are created on the given device.
func Load(path string, device tensor.Device) (map[string]*tensor.RawTensor, *Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(file, fixed); err != nil {
		return nil, nil, fmt.Errorf("read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, nil, ErrHeaderTooLarge
	}
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	if padding := (DataAlignment - pos%DataAlignment) % DataAlignment; padding > 0 {
		if _, err := io.ReadFull(file, make([]byte, padding)); err != nil {
			return nil, nil, fmt.Errorf("read padding: %w", err)
		}
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, nil, fmt.Errorf("read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, nil, err
	}

	state := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := extractTensor(data, meta, device)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		state[meta.Name] = raw
	}
	return state, &header, nil
}

func extractTensor(data []byte, meta TensorMeta, device tensor.Device) (*tensor.RawTensor, error) {
	if meta.Offset < 0 || meta.Size < 0 {
		return nil, ErrNegativeOffset
	}
	if meta.Offset+meta.Size > int64(len(data)) {
		return nil, ErrOutOfBounds
	}
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unknown dtype %q", meta.DType)
	}
	shape := tensor.Shape(meta.Shape)
	if int64(shape.NumElements()*dtype.Size()) != meta.Size {
		return nil, ErrSizeMismatch
	}
	raw, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
	return raw, nil
}

