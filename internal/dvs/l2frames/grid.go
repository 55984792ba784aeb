package l2frames

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/dvsvideo/internal/dvs/l1events"
)

// ErrOutOfBounds is returned when an event addresses a pixel outside the grid.
var ErrOutOfBounds = errors.New("event coordinate out of bounds")

// Inactive marks a pixel that has not been active since the start of the
// stream. It sorts before every real timestamp, including zero.
const Inactive int64 = math.MinInt64

// Grid stores, for every pixel, the timestamp (µs) of its most recent
// activation, or Inactive.
type Grid struct {
	width  int
	height int
	cells  []int64 // row-major, len = width*height
}

// NewGrid allocates a width×height grid with every pixel Inactive.
func NewGrid(width, height int) *Grid {
	cells := make([]int64, width*height)
	for i := range cells {
		cells[i] = Inactive
	}
	return &Grid{width: width, height: height, cells: cells}
}

// Width returns the grid width in pixels.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in pixels.
func (g *Grid) Height() int { return g.height }

// Activate records an activation of (x, y) at ts.
func (g *Grid) Activate(x, y int, ts int64) error {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return fmt.Errorf("%w: (%d,%d) not in %dx%d", ErrOutOfBounds, x, y, g.width, g.height)
	}
	g.cells[y*g.width+x] = ts
	return nil
}

// Apply folds one event into the grid. Deactivation events carry no
// information for recency rendering and are ignored.
func (g *Grid) Apply(ev l1events.Event) error {
	if !ev.Activation {
		return nil
	}
	return g.Activate(ev.X, ev.Y, ev.Timestamp)
}

// LastActive returns the last activation time of (x, y).
func (g *Grid) LastActive(x, y int) int64 {
	return g.cells[y*g.width+x]
}

// Row returns the backing slice for row y. Callers must treat it as
// read-only and must not retain it past the next mutation.
func (g *Grid) Row(y int) []int64 {
	start := y * g.width
	return g.cells[start : start+g.width]
}
