// Package transform resizes and smooths rendered heatmap frames before
// encoding. Everything here is stateless and safe to call from many workers
// at once.
package transform

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

const (
	// MinBlurSize and MaxBlurSize bound the median aperture.
	MinBlurSize = 1
	MaxBlurSize = 13
)

// ErrInvalidBlurSize is returned for apertures that are even or out of range.
var ErrInvalidBlurSize = errors.New("median blur size must be odd and in [1, 13]")

// ValidateBlurSize checks a median aperture.
func ValidateBlurSize(ksize int) error {
	if ksize < MinBlurSize || ksize > MaxBlurSize || ksize%2 == 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBlurSize, ksize)
	}
	return nil
}

// Transformer resizes a frame to Width×Height then applies a BlurSize median.
type Transformer struct {
	Width    int
	Height   int
	BlurSize int
}

// New returns a Transformer after validating its parameters.
func New(width, height, blurSize int) (*Transformer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("output size must be positive, got %dx%d", width, height)
	}
	if err := ValidateBlurSize(blurSize); err != nil {
		return nil, err
	}
	return &Transformer{Width: width, Height: height, BlurSize: blurSize}, nil
}

// Apply produces a new image; src is not modified.
func (t *Transformer) Apply(src image.Image) (*image.RGBA, error) {
	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(t.Width, t.Height), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return nil, fmt.Errorf("resize to %dx%d failed", t.Width, t.Height)
	}
	return medianMat(resized, t.BlurSize)
}

// Resize scales src to width×height with bilinear interpolation.
func Resize(src image.Image, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("output size must be positive, got %dx%d", width, height)
	}
	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(mat, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	if dst.Empty() {
		return nil, fmt.Errorf("resize to %dx%d failed", width, height)
	}
	return fromMat(dst)
}

// MedianBlur replaces each RGB sample with the median of its ksize×ksize
// neighbourhood, replicating edge pixels past the border. The result is
// opaque and never aliases src.
func MedianBlur(src image.Image, ksize int) (*image.RGBA, error) {
	if err := ValidateBlurSize(ksize); err != nil {
		return nil, err
	}
	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return medianMat(mat, ksize)
}

func medianMat(src gocv.Mat, ksize int) (*image.RGBA, error) {
	if ksize == 1 {
		return fromMat(src)
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MedianBlur(src, &dst, ksize)
	if dst.Empty() {
		return nil, fmt.Errorf("median blur %d failed", ksize)
	}
	return fromMat(dst)
}

// toMat copies img into a three-channel 8-bit Mat. Alpha is dropped.
func toMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(toRGBA(img))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("image to mat: %w", err)
	}
	return mat, nil
}

func fromMat(m gocv.Mat) (*image.RGBA, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return toRGBA(img), nil
}

// toRGBA returns img as an origin-based *image.RGBA, copying when it is any
// other type or a sub-image.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
