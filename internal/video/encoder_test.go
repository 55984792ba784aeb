package video

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestAVIPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "result.avi", AVIPath("result"))
	assert.Equal(t, "out/result.AVI", AVIPath("out/result.AVI"))
	assert.Equal(t, "result.mp4.avi", AVIPath("result.mp4"))
}

func TestAVIWriter_WritesContainer(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "clip.avi")
	w, err := NewAVIWriter(path, 32, 24, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())

	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteFrame(solid(32, 24, color.RGBA{R: uint8(80 * i), A: 255})))
	}
	assert.Equal(t, 3, w.Frames())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "AVI ", string(data[8:12]))
	assert.True(t, bytes.Contains(data, []byte("MJPG")))
	assert.GreaterOrEqual(t, bytes.Count(data, []byte("00dc")), 3, "one chunk per frame")

	assert.True(t, errors.Is(w.WriteFrame(solid(32, 24, color.RGBA{})), ErrClosed))
}

func TestAVIWriter_RejectsWrongSize(t *testing.T) {
	t.Parallel()
	w, err := NewAVIWriter(filepath.Join(t.TempDir(), "clip.avi"), 32, 24, 30, 90)
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteFrame(solid(10, 10, color.RGBA{}))
	assert.True(t, errors.Is(err, ErrFrameSize))
	assert.Zero(t, w.Frames())
}

func TestNewAVIWriter_InvalidArgs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := NewAVIWriter(filepath.Join(dir, "a.avi"), 0, 24, 30, 90)
	assert.Error(t, err)
	_, err = NewAVIWriter(filepath.Join(dir, "b.avi"), 32, 24, 0, 90)
	assert.Error(t, err)
	_, err = NewAVIWriter(filepath.Join(dir, "missing", "c.avi"), 32, 24, 30, 90)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := &Recorder{FailAt: 3, Err: boom}

	src := solid(4, 4, color.RGBA{G: 9, A: 255})
	require.NoError(t, r.WriteFrame(src))
	src.Pix[1] = 200
	require.NoError(t, r.WriteFrame(src))
	assert.ErrorIs(t, r.WriteFrame(src), boom)

	frames := r.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, uint8(9), frames[0].Pix[1], "frames are copied on write")
	assert.Equal(t, uint8(200), frames[1].Pix[1])

	require.NoError(t, r.Close())
	assert.True(t, r.Closed())
	assert.ErrorIs(t, r.WriteFrame(src), ErrClosed)
}
