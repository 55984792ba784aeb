package l1events

import (
	"errors"
	"fmt"
)

// DAVIS346 sensor resolution.
const (
	DAVIS346Width  = 346
	DAVIS346Height = 260
)

// Event is a single brightness-change report from the camera.
type Event struct {
	Timestamp  int64 // microseconds since recording start
	X          int   // column in image space (already mirrored)
	Y          int   // row in image space (already mirrored)
	Activation bool  // true for ON (brighter) events
}

// Geometry describes the sensor array and how raw addresses map to image
// coordinates.
type Geometry struct {
	Width   int
	Height  int
	MirrorX bool // x' = Width-1-x
	MirrorY bool // y' = Height-1-y
}

// DAVIS346 returns the geometry of the DAVIS346 sensor with both axes
// mirrored, matching how recordings from that camera are oriented.
func DAVIS346() Geometry {
	return Geometry{Width: DAVIS346Width, Height: DAVIS346Height, MirrorX: true, MirrorY: true}
}

// Map converts raw sensor addresses into image coordinates.
func (g Geometry) Map(rawX, rawY int) (int, int) {
	x, y := rawX, rawY
	if g.MirrorX {
		x = g.Width - 1 - rawX
	}
	if g.MirrorY {
		y = g.Height - 1 - rawY
	}
	return x, y
}

// Contains reports whether (x, y) lies inside the image.
func (g Geometry) Contains(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmptyInput is returned when the event log has no header row.
	ErrEmptyInput = errors.New("event log is empty")
	// ErrOutOfRange is returned when a raw address falls outside the sensor.
	ErrOutOfRange = errors.New("event address outside the sensor")
	// ErrNotMonotonic is returned when an event timestamp goes backwards.
	ErrNotMonotonic = errors.New("event timestamps are not non-decreasing")
)

// ParseError reports a record that could not be turned into an Event.
type ParseError struct {
	Line   int    // 1-based line in the input, header is line 1
	Column string // header name of the offending field, if known
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %q value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
