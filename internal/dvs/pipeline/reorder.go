package pipeline

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/banshee-data/dvsvideo/internal/monitoring"
	"github.com/banshee-data/dvsvideo/internal/video"
)

var (
	// ErrSequenceGap is returned by Close when frames are still buffered
	// behind a sequence number that never arrived.
	ErrSequenceGap = errors.New("frame sequence gap")

	// ErrDuplicateSequence is returned when a sequence number arrives that
	// was already written or is already buffered.
	ErrDuplicateSequence = errors.New("duplicate frame sequence")
)

// ReorderWriter restores emission order over out-of-order transform results
// and is the only writer to the encoder. It is not safe for concurrent use.
type ReorderWriter struct {
	enc        video.Encoder
	stats      *monitoring.RunStats // optional
	next       int                  // next sequence number to write
	pending    map[int]image.Image  // never contains next
	maxPending int
	written    int
	closed     bool
}

// NewReorderWriter returns a writer expecting sequence number 0 first.
func NewReorderWriter(enc video.Encoder, stats *monitoring.RunStats) *ReorderWriter {
	return &ReorderWriter{
		enc:     enc,
		stats:   stats,
		pending: make(map[int]image.Image),
	}
}

// Submit hands over a transformed frame. A frame carrying the expected
// sequence number is written immediately, followed by any contiguous run of
// buffered frames; anything else is buffered.
func (w *ReorderWriter) Submit(seq int, img image.Image) error {
	if seq < w.next {
		return fmt.Errorf("%w: %d already written", ErrDuplicateSequence, seq)
	}
	if _, ok := w.pending[seq]; ok {
		return fmt.Errorf("%w: %d already buffered", ErrDuplicateSequence, seq)
	}
	if seq != w.next {
		w.pending[seq] = img
		if n := len(w.pending); n > w.maxPending {
			w.maxPending = n
		}
		if w.stats != nil {
			w.stats.ObservePending(len(w.pending))
		}
		return nil
	}

	if err := w.write(img); err != nil {
		return err
	}
	for {
		buffered, ok := w.pending[w.next]
		if !ok {
			return nil
		}
		delete(w.pending, w.next)
		if err := w.write(buffered); err != nil {
			return err
		}
	}
}

func (w *ReorderWriter) write(img image.Image) error {
	if err := w.enc.WriteFrame(img); err != nil {
		return fmt.Errorf("write frame %d: %w", w.next, err)
	}
	w.next++
	w.written++
	if w.stats != nil {
		w.stats.FrameWritten(len(w.pending))
	}
	return nil
}

// Next returns the sequence number the writer is waiting for.
func (w *ReorderWriter) Next() int { return w.next }

// Pending returns the number of buffered frames.
func (w *ReorderWriter) Pending() int { return len(w.pending) }

// MaxPending returns the largest buffer depth seen.
func (w *ReorderWriter) MaxPending() int { return w.maxPending }

// Written returns the number of frames handed to the encoder.
func (w *ReorderWriter) Written() int { return w.written }

// Close closes the encoder. It reports ErrSequenceGap if any frame is still
// buffered, since those can never be written in order.
func (w *ReorderWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var gapErr error
	if len(w.pending) > 0 {
		seqs := make([]int, 0, len(w.pending))
		for s := range w.pending {
			seqs = append(seqs, s)
		}
		sort.Ints(seqs)
		gapErr = fmt.Errorf("%w: waiting for %d with %d frames buffered (first %d)",
			ErrSequenceGap, w.next, len(seqs), seqs[0])
	}
	return errors.Join(gapErr, w.enc.Close())
}
