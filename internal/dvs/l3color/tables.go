package l3color

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

const (
	// PeakIntensity is the intensity of a pixel activated exactly at the
	// frame boundary.
	PeakIntensity = 500.0

	// HueSteps is N in the 2·N+1 entry gradient.
	HueSteps = 256

	// hueStepDegrees is the hue increment between gradient entries.
	hueStepDegrees = 0.5
)

// ErrInvalidDecayRate is returned for decay rates outside (0, 1).
var ErrInvalidDecayRate = errors.New("decay rate must be in (0, 1)")

// DecayCurve maps elapsed-time buckets to a decaying intensity. Entries are
// strictly decreasing from PeakIntensity; the final entry is the first value
// that fell below 1.0.
type DecayCurve struct {
	values []float64
}

// BuildDecayCurve samples 500·(1−rate)^(t/interval) every 2·interval µs
// (the first step is offset by 1µs) until the value falls below 1.
func BuildDecayCurve(interval int64, rate float64) (*DecayCurve, error) {
	if !(rate > 0 && rate < 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDecayRate, rate)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %d", interval)
	}

	f := float64(interval)
	step := 2 * f
	value := PeakIntensity
	iteration := 1.0
	values := make([]float64, 0, 64)
	for {
		values = append(values, value)
		if value < 1 {
			break
		}
		value = PeakIntensity * math.Pow(1-rate, iteration/f)
		iteration += step
	}
	return &DecayCurve{values: values}, nil
}

// Len returns the number of buckets.
func (c *DecayCurve) Len() int { return len(c.values) }

// At returns the intensity for bucket i, or 0 past the end of the table.
func (c *DecayCurve) At(i int) float64 {
	if i < 0 || i >= len(c.values) {
		return 0
	}
	return c.values[i]
}

// Values returns a copy of the table.
func (c *DecayCurve) Values() []float64 {
	return append([]float64(nil), c.values...)
}

// HueGradient maps an integer intensity to a display color. Entry 0 is the
// black background; entries 1..2·HueSteps step the hue by half a degree at
// full saturation and value.
type HueGradient struct {
	colors []color.RGBA
}

// BuildHueGradient constructs the fixed 2·HueSteps+1 entry gradient.
func BuildHueGradient() *HueGradient {
	n := 2 * HueSteps
	colors := make([]color.RGBA, n+1)
	colors[0] = color.RGBA{A: 0xff}
	for k := 1; k <= n; k++ {
		colors[k] = hsvToRGBA(float64(k) * hueStepDegrees)
	}
	return &HueGradient{colors: colors}
}

// hsvToRGBA converts a fully saturated, full-value hue in degrees to opaque
// RGBA using the six-sector switch. Channels are truncated, not rounded.
func hsvToRGBA(hue float64) color.RGBA {
	h := hue / 360
	if h >= 1 {
		h = 0
	}
	h *= 6
	sector := math.Floor(h)
	f := h - sector
	v := uint8(255.0)
	fall := uint8(255 * (1 - f))
	rise := uint8(255 * (1 - (1 - f)))

	var r, g, b uint8
	switch int(sector) {
	case 0:
		r, g, b = v, rise, 0
	case 1:
		r, g, b = fall, v, 0
	case 2:
		r, g, b = 0, v, rise
	case 3:
		r, g, b = 0, fall, v
	case 4:
		r, g, b = rise, 0, v
	case 5:
		r, g, b = v, 0, fall
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Len returns the number of gradient entries.
func (h *HueGradient) Len() int { return len(h.colors) }

// At returns the color for intensity index i, clamped to the background for
// out-of-range indices.
func (h *HueGradient) At(i int) color.RGBA {
	if i < 0 || i >= len(h.colors) {
		return h.colors[0]
	}
	return h.colors[i]
}

// Background returns the color of fully decayed pixels.
func (h *HueGradient) Background() color.RGBA { return h.colors[0] }
