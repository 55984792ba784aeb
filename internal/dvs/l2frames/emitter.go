package l2frames

// Boundary identifies one emitted frame.
type Boundary struct {
	Seq  int   // 0, 1, 2, … in emission order
	Time int64 // frame boundary time (µs) used for decay lookup
}

// FrameInterval converts a frame rate into the per-frame interval in µs.
func FrameInterval(rate int) int64 {
	return 1_000_000 / int64(rate)
}

// Emitter decides when the grid is snapshotted. It is data-driven rather than
// a periodic timer: an event past the current boundary emits exactly one
// frame, and the next boundary is re-based on that event's timestamp, so a
// gap spanning several intervals collapses into a single frame.
type Emitter struct {
	interval int64
	next     int64
	seq      int
}

// NewEmitter returns an Emitter whose first boundary is one interval after
// time zero.
func NewEmitter(interval int64) *Emitter {
	return &Emitter{interval: interval, next: interval}
}

// Observe reports whether an event at ts crosses the current boundary. When it
// does, the returned Boundary must be rendered from the grid state before the
// event itself is applied.
func (e *Emitter) Observe(ts int64) (Boundary, bool) {
	if ts <= e.next {
		return Boundary{}, false
	}
	b := Boundary{Seq: e.seq, Time: e.next}
	e.seq++
	e.next = ts + e.interval
	return b, true
}

// Next returns the current boundary threshold.
func (e *Emitter) Next() int64 { return e.next }

// Interval returns the frame interval in µs.
func (e *Emitter) Interval() int64 { return e.interval }

// Emitted returns how many boundaries have been crossed.
func (e *Emitter) Emitted() int { return e.seq }
