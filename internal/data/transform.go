package data

import (
	"image"
	"math"
	"math/rand"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics, used to normalize inputs the same way
// the pretrained backbones were trained.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Transform maps one image to another, drawing any randomness from
// rng.
type Transform interface {
	Apply(img image.Image, rng *rand.Rand) image.Image
}

// Compose applies transforms in order.
type Compose []Transform

func (c Compose) Apply(img image.Image, rng *rand.Rand) image.Image {
	for _, t := range c {
		img = t.Apply(img, rng)
	}
	return img
}

// Resize scales the shorter side to Size, preserving aspect ratio.
type Resize struct {
	Size int
}

func (t Resize) Apply(img image.Image, rng *rand.Rand) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	var newW, newH int
	if w < h {
		newW = t.Size
		newH = h * t.Size / w
	} else {
		newH = t.Size
		newW = w * t.Size / h
	}
	return resizeTo(img, newW, newH)
}

// CenterCrop cuts a Size x Size region from the image center. Images
// smaller than Size are scaled up first.
type CenterCrop struct {
	Size int
}

func (t CenterCrop) Apply(img image.Image, rng *rand.Rand) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() < t.Size || bounds.Dy() < t.Size {
		img = Resize{Size: t.Size}.Apply(img, rng)
		bounds = img.Bounds()
	}
	x0 := bounds.Min.X + (bounds.Dx()-t.Size)/2
	y0 := bounds.Min.Y + (bounds.Dy()-t.Size)/2
	return crop(img, x0, y0, t.Size)
}

// RandomResizedCrop picks a random area and aspect ratio, crops it and
// scales to Size x Size. This is the standard training augmentation.
type RandomResizedCrop struct {
	Size int
}

func (t RandomResizedCrop) Apply(img image.Image, rng *rand.Rand) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	area := float64(w * h)

	for attempt := 0; attempt < 10; attempt++ {
		targetArea := area * (0.08 + rng.Float64()*0.92)
		logRatio := math.Log(3.0/4.0) + rng.Float64()*(math.Log(4.0/3.0)-math.Log(3.0/4.0))
		ratio := math.Exp(logRatio)

		cw := int(math.Round(math.Sqrt(targetArea * ratio)))
		ch := int(math.Round(math.Sqrt(targetArea / ratio)))
		if cw <= 0 || ch <= 0 || cw > w || ch > h {
			continue
		}
		x0 := bounds.Min.X + rng.Intn(w-cw+1)
		y0 := bounds.Min.Y + rng.Intn(h-ch+1)
		cropped := cropRect(img, x0, y0, cw, ch)
		return resizeTo(cropped, t.Size, t.Size)
	}
	// Fallback: central crop of the full short side.
	return CenterCrop{Size: t.Size}.Apply(Resize{Size: t.Size}.Apply(img, rng), rng)
}

// RandomHorizontalFlip mirrors the image left-right with probability P.
type RandomHorizontalFlip struct {
	P float64
}

func (t RandomHorizontalFlip) Apply(img image.Image, rng *rand.Rand) image.Image {
	if rng.Float64() >= t.P {
		return img
	}
	bounds := img.Bounds()
	flipped := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			flipped.Set(bounds.Dx()-1-x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return flipped
}

// TrainTransform is the standard augmentation pipeline for a given
// input resolution.
func TrainTransform(size int) Transform {
	return Compose{
		RandomResizedCrop{Size: size},
		RandomHorizontalFlip{P: 0.5},
	}
}

// EvalTransform is the deterministic pipeline for validation: resize
// the short side slightly above target, then center crop.
func EvalTransform(size int) Transform {
	return Compose{
		Resize{Size: size * 8 / 7}, // 224 -> 256, 299 -> 341
		CenterCrop{Size: size},
	}
}

func resizeTo(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func crop(img image.Image, x0, y0, size int) image.Image {
	return cropRect(img, x0, y0, size, size)
}

func cropRect(img image.Image, x0, y0, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, image.Point{X: x0, Y: y0}, draw.Src)
	return dst
}

// writeCHW converts an image to normalized CHW float32 values in dst,
// which must hold 3*size*size elements. Pixels are scaled to [0, 1]
// then normalized per channel.
func writeCHW(dst []float32, img image.Image, size int, mean, std [3]float32) {
	bounds := img.Bounds()
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*size + x
			dst[idx] = (float32(r)/65535 - mean[0]) / std[0]
			dst[plane+idx] = (float32(g)/65535 - mean[1]) / std[1]
			dst[2*plane+idx] = (float32(b)/65535 - mean[2]) / std[2]
		}
	}
}
