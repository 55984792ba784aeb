// Package monitoring counts render progress and logs it periodically.
package monitoring

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/dvsvideo/internal/timeutil"
)

// RunStats tracks progress counters for a single render run. All methods are
// safe for concurrent use; the ingest stage and the writer update it from
// different goroutines.
type RunStats struct {
	events        atomic.Int64
	activations   atomic.Int64
	framesEmitted atomic.Int64
	framesWritten atomic.Int64
	maxPending    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of RunStats.
type StatsSnapshot struct {
	Events          int64
	Activations     int64
	FramesEmitted   int64
	FramesWritten   int64
	MaxReorderDepth int64
}

// AddEvent counts one ingested event.
func (s *RunStats) AddEvent(activation bool) {
	s.events.Add(1)
	if activation {
		s.activations.Add(1)
	}
}

// FrameEmitted counts one frame handed to the transform stage.
func (s *RunStats) FrameEmitted() {
	s.framesEmitted.Add(1)
}

// FrameWritten counts one frame delivered to the encoder and records the
// reorder buffer depth observed at that moment.
func (s *RunStats) FrameWritten(pending int) {
	s.framesWritten.Add(1)
	s.ObservePending(pending)
}

// ObservePending raises the high-water mark of the reorder buffer.
func (s *RunStats) ObservePending(pending int) {
	p := int64(pending)
	for {
		cur := s.maxPending.Load()
		if p <= cur || s.maxPending.CompareAndSwap(cur, p) {
			return
		}
	}
}

// Snapshot returns the current counter values.
func (s *RunStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Events:          s.events.Load(),
		Activations:     s.activations.Load(),
		FramesEmitted:   s.framesEmitted.Load(),
		FramesWritten:   s.framesWritten.Load(),
		MaxReorderDepth: s.maxPending.Load(),
	}
}

// LogProgress logs a progress line every interval until ctx is cancelled.
// Intervals with no new events are skipped to keep the log quiet while the
// writer drains the tail of a run.
func (s *RunStats) LogProgress(ctx context.Context, clock timeutil.Clock, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	var lastEvents int64
	lastTick := clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			snap := s.Snapshot()
			if snap.Events == lastEvents && snap.FramesWritten == snap.FramesEmitted {
				lastTick = now
				continue
			}
			elapsed := now.Sub(lastTick).Seconds()
			rate := 0.0
			if elapsed > 0 {
				rate = float64(snap.Events-lastEvents) / elapsed
			}
			Logf("[Progress] events=%d (%.0f/s) activations=%d frames emitted=%d written=%d reorder_max=%d",
				snap.Events, rate, snap.Activations, snap.FramesEmitted, snap.FramesWritten, snap.MaxReorderDepth)
			lastEvents = snap.Events
			lastTick = now
		}
	}
}
