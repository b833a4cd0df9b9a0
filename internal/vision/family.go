// Package vision builds convolutional classifier architectures and
// adapts them to new classification tasks by swapping the final layer,
// optionally loading pretrained weights and freezing the backbone.
package vision

import (
	"errors"
	"fmt"
)

// Family identifies a supported architecture.
type Family int

const (
	ResNet18Family Family = iota
	AlexNetFamily
	VGG11Family
	SqueezeNetFamily
	DenseNet121Family
	InceptionV3Family
)

// ErrUnsupportedFamily is returned when a family name or value is not
// one of the supported architectures.
var ErrUnsupportedFamily = errors.New("unsupported model family")

var familyNames = map[Family]string{
	ResNet18Family:    "resnet18",
	AlexNetFamily:     "alexnet",
	VGG11Family:       "vgg11_bn",
	SqueezeNetFamily:  "squeezenet1_0",
	DenseNet121Family: "densenet121",
	InceptionV3Family: "inception_v3",
}

// String returns the canonical lowercase family name.
func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// InputSize returns the square input resolution the family expects.
func (f Family) InputSize() int {
	if f == InceptionV3Family {
		return 299
	}
	return 224
}

// HasAuxHead reports whether the family carries an auxiliary
// classifier during training.
func (f Family) HasAuxHead() bool {
	return f == InceptionV3Family
}

// ParseFamily resolves a family from its canonical name.
func ParseFamily(name string) (Family, error) {
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFamily, name)
}

// Families lists all supported families in a stable order.
func Families() []Family {
	return []Family{
		ResNet18Family,
		AlexNetFamily,
		VGG11Family,
		SqueezeNetFamily,
		DenseNet121Family,
		InceptionV3Family,
	}
}
