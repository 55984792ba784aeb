// Package report collects per-frame render statistics and writes them out as
// PNG plots and an HTML chart alongside the video.
package report

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FrameStat describes one emitted frame.
type FrameStat struct {
	Seq         int
	Boundary    int64 // µs
	Events      int   // events applied since the previous frame
	Activations int
	LitPixels   int // pixels not at the background colour
}

// Summary aggregates FrameStat values.
type Summary struct {
	Frames       int
	LitMean      float64
	LitStdDev    float64
	LitMax       float64
	EventsMean   float64
	EventsStdDev float64
	EventsMax    float64
}

// Collector accumulates frame statistics. Record is called from the ingest
// stage; the remaining methods may be called from any goroutine.
type Collector struct {
	mu     sync.Mutex
	frames []FrameStat
	curve  []float64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends one frame.
func (c *Collector) Record(s FrameStat) {
	c.mu.Lock()
	c.frames = append(c.frames, s)
	c.mu.Unlock()
}

// SetDecayCurve stores the decay table used for the render.
func (c *Collector) SetDecayCurve(values []float64) {
	c.mu.Lock()
	c.curve = append([]float64(nil), values...)
	c.mu.Unlock()
}

// Frames returns a copy of the recorded frames.
func (c *Collector) Frames() []FrameStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FrameStat(nil), c.frames...)
}

// DecayCurve returns a copy of the stored decay table.
func (c *Collector) DecayCurve() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.curve...)
}

// Summarize computes mean, sample standard deviation and maximum of lit
// pixels and events per frame.
func (c *Collector) Summarize() Summary {
	frames := c.Frames()
	s := Summary{Frames: len(frames)}
	if len(frames) == 0 {
		return s
	}

	lit := make([]float64, len(frames))
	events := make([]float64, len(frames))
	for i, f := range frames {
		lit[i] = float64(f.LitPixels)
		events[i] = float64(f.Events)
	}
	s.LitMean, s.LitStdDev = meanStdDev(lit)
	s.EventsMean, s.EventsStdDev = meanStdDev(events)
	s.LitMax = floats.Max(lit)
	s.EventsMax = floats.Max(events)
	return s
}

func meanStdDev(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
