package video

import (
	"image"
	"image/draw"
	"sync"
)

// Recorder is an in-memory Encoder that keeps a copy of every frame.
type Recorder struct {
	mu     sync.Mutex
	frames []*image.RGBA
	closed bool

	// FailAt, when positive, makes the FailAt-th WriteFrame call (1-based)
	// return Err.
	FailAt int
	Err    error
}

// WriteFrame stores a copy of img.
func (r *Recorder) WriteFrame(img image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.FailAt > 0 && len(r.frames)+1 == r.FailAt {
		return r.Err
	}
	b := img.Bounds()
	cp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(cp, cp.Bounds(), img, b.Min, draw.Src)
	r.frames = append(r.frames, cp)
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Frames returns the recorded frames in write order.
func (r *Recorder) Frames() []*image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*image.RGBA(nil), r.frames...)
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
