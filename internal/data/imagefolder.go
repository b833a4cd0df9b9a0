// Package data loads directory-organized image datasets and assembles
// training batches. The expected layout is root/<split>/<class>/*.jpg
// with one subdirectory per class.
package data

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Register decoders for the supported image formats.
	_ "image/jpeg"
	_ "image/png"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Sample is one labeled image on disk.
type Sample struct {
	Path  string
	Label int32
}

// Dataset is a list of labeled image files with a shared class index
// mapping.
type Dataset struct {
	Samples []Sample
	Classes []string
}

// NumClasses returns the number of classes in the mapping.
func (d *Dataset) NumClasses() int { return len(d.Classes) }

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Samples) }

// DiscoverClasses lists the class subdirectories of a split directory
// in sorted order. Every split of a dataset must use the mapping
// derived from one split, normally train, so labels agree across
// splits.
func DiscoverClasses(splitDir string) ([]string, error) {
	entries, err := os.ReadDir(splitDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", splitDir, err)
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class directories in %s", splitDir)
	}
	sort.Strings(classes)
	return classes, nil
}

// NewImageFolder scans a split directory for images, labeling each by
// its class directory's position in classes. Files in directories not
// listed in classes are an error, so a typo cannot silently drop a
// class.
func NewImageFolder(splitDir string, classes []string) (*Dataset, error) {
	classIdx := make(map[string]int32, len(classes))
	for i, c := range classes {
		classIdx[c] = int32(i)
	}

	entries, err := os.ReadDir(splitDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", splitDir, err)
	}

	ds := &Dataset{Classes: classes}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		label, ok := classIdx[e.Name()]
		if !ok {
			return nil, fmt.Errorf("directory %s has no class index", filepath.Join(splitDir, e.Name()))
		}
		files, err := os.ReadDir(filepath.Join(splitDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read class %s: %w", e.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			ds.Samples = append(ds.Samples, Sample{
				Path:  filepath.Join(splitDir, e.Name(), f.Name()),
				Label: label,
			})
		}
	}
	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("no images found in %s", splitDir)
	}
	return ds, nil
}

// decodeImage opens and decodes one image file.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
