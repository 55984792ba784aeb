package l3color

import (
	"image"
	"image/color"
	"math"

	"github.com/banshee-data/dvsvideo/internal/dvs/l2frames"
)

// ColorFrame is one rendered heatmap at sensor resolution.
type ColorFrame struct {
	Seq       int
	Boundary  int64 // µs
	Image     *image.RGBA
	LitPixels int // pixels not at the background color
}

// ColorMapper turns a grid snapshot into a recency heatmap.
//
// The elapsed-time bucket used for lookup is one frame interval wide while
// the decay table is sampled every two intervals. That factor of two is
// carried as observed in recorded output and is not corrected here.
type ColorMapper struct {
	interval   int64
	buckets    []color.RGBA // color for each decay bucket
	lit        []bool       // bucket maps to a non-background color
	background color.RGBA
}

// NewColorMapper precomputes the bucket→color table from the shared,
// read-only curve and gradient.
func NewColorMapper(interval int64, curve *DecayCurve, gradient *HueGradient) *ColorMapper {
	m := &ColorMapper{
		interval:   interval,
		buckets:    make([]color.RGBA, curve.Len()),
		lit:        make([]bool, curve.Len()),
		background: gradient.Background(),
	}
	for i := range m.buckets {
		idx := int(curve.At(i)) // ⌊intensity⌋
		m.buckets[i] = gradient.At(idx)
		m.lit[i] = idx >= 1 && idx < gradient.Len()
	}
	return m
}

// Bucket returns the decay bucket for a pixel last active at t, viewed from
// boundary b. Inactive pixels land past the end of every curve.
func (m *ColorMapper) Bucket(b, t int64) int64 {
	if t == l2frames.Inactive {
		return math.MaxInt64
	}
	elapsed := b - t
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed / m.interval
}

// ColorAt returns the heatmap color for a pixel last active at t.
func (m *ColorMapper) ColorAt(b, t int64) color.RGBA {
	k := m.Bucket(b, t)
	if k >= int64(len(m.buckets)) {
		return m.background
	}
	return m.buckets[k]
}

// Map renders the grid as seen at boundary b. It must run on the goroutine
// that owns the grid, before the next event is applied.
func (m *ColorMapper) Map(g *l2frames.Grid, b l2frames.Boundary) ColorFrame {
	w, h := g.Width(), g.Height()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	n := int64(len(m.buckets))
	lit := 0

	for y := 0; y < h; y++ {
		row := g.Row(y)
		pix := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x, t := range row {
			c := m.background
			if k := m.Bucket(b.Time, t); k < n {
				c = m.buckets[k]
				if m.lit[k] {
					lit++
				}
			}
			o := x * 4
			pix[o+0] = c.R
			pix[o+1] = c.G
			pix[o+2] = c.B
			pix[o+3] = c.A
		}
	}

	return ColorFrame{Seq: b.Seq, Boundary: b.Time, Image: img, LitPixels: lit}
}
