// Package video writes rendered frames to a container file.
package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"path/filepath"
	"strings"

	"github.com/icza/mjpeg"
)

// Encoder consumes frames in presentation order.
type Encoder interface {
	WriteFrame(img image.Image) error
	Close() error
}

// DefaultQuality is the JPEG quality used for each MJPEG frame.
const DefaultQuality = 95

// ErrFrameSize is returned when a frame does not match the encoder size.
var ErrFrameSize = errors.New("frame size does not match encoder")

// ErrClosed is returned by WriteFrame after Close.
var ErrClosed = errors.New("encoder closed")

// AVIPath returns the container path for an output base name.
func AVIPath(output string) string {
	if strings.EqualFold(filepath.Ext(output), ".avi") {
		return output
	}
	return output + ".avi"
}

// AVIWriter encodes frames as Motion-JPEG inside an AVI container.
type AVIWriter struct {
	path    string
	width   int
	height  int
	quality int
	aw      mjpeg.AviWriter
	buf     bytes.Buffer
	frames  int
	closed  bool
}

// NewAVIWriter creates (or truncates) path and writes the container header.
func NewAVIWriter(path string, width, height, fps, quality int) (*AVIWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", fps)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	log.Printf("[Writer] opened %s %dx%d @ %d fps", path, width, height, fps)
	return &AVIWriter{path: path, width: width, height: height, quality: quality, aw: aw}, nil
}

// WriteFrame JPEG-encodes img and appends it to the stream.
func (w *AVIWriter) WriteFrame(img image.Image) error {
	if w.closed {
		return ErrClosed
	}
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), w.width, w.height)
	}
	w.buf.Reset()
	if err := jpeg.Encode(&w.buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("encode frame %d: %w", w.frames, err)
	}
	if err := w.aw.AddFrame(w.buf.Bytes()); err != nil {
		return fmt.Errorf("write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *AVIWriter) Frames() int { return w.frames }

// Path returns the container path.
func (w *AVIWriter) Path() string { return w.path }

// Close finalises the AVI index. It is safe to call more than once.
func (w *AVIWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.aw.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	log.Printf("[Writer] closed %s after %d frames", w.path, w.frames)
	return nil
}
