package report

import (
	"bytes"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvsvideo/internal/fsutil"
)

func sampleCollector() *Collector {
	c := NewCollector()
	c.SetDecayCurve([]float64{500, 300, 180, 0.5})
	c.Record(FrameStat{Seq: 0, Boundary: 16666, Events: 10, Activations: 6, LitPixels: 100})
	c.Record(FrameStat{Seq: 1, Boundary: 36666, Events: 20, Activations: 12, LitPixels: 200})
	c.Record(FrameStat{Seq: 2, Boundary: 56666, Events: 30, Activations: 18, LitPixels: 300})
	return c
}

func TestCollector_Summarize(t *testing.T) {
	t.Parallel()
	got := sampleCollector().Summarize()
	want := Summary{
		Frames:       3,
		LitMean:      200,
		LitStdDev:    100,
		LitMax:       300,
		EventsMean:   20,
		EventsStdDev: 10,
		EventsMax:    30,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector_SummarizeSmall(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	assert.Equal(t, Summary{}, c.Summarize())

	c.Record(FrameStat{LitPixels: 7, Events: 3})
	s := c.Summarize()
	assert.Equal(t, 1, s.Frames)
	assert.Equal(t, 7.0, s.LitMean)
	assert.Zero(t, s.LitStdDev)
}

func TestCollector_CopiesAreIndependent(t *testing.T) {
	t.Parallel()
	c := sampleCollector()
	frames := c.Frames()
	frames[0].LitPixels = -1
	curve := c.DecayCurve()
	curve[0] = -1
	assert.Equal(t, 100, c.Frames()[0].LitPixels)
	assert.Equal(t, 500.0, c.DecayCurve()[0])
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(FrameStat{Seq: j})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, c.Frames(), 800)
}

func TestWrite_AllArtifacts(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	paths, err := sampleCollector().Write(fsys, "reports", "run-1")
	require.NoError(t, err)

	runDir := filepath.Join("reports", "run-1")
	want := []string{
		filepath.Join(runDir, DecayCurvePlot),
		filepath.Join(runDir, FramesChart),
		filepath.Join(runDir, LitPixelsPlot),
	}
	sort.Strings(paths)
	assert.Equal(t, want, paths)
	assert.True(t, fsys.Exists(runDir))

	for _, png := range []string{DecayCurvePlot, LitPixelsPlot} {
		data, err := fsys.ReadFile(filepath.Join(runDir, png))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "%s is not a PNG", png)
	}

	html, err := fsys.ReadFile(filepath.Join(runDir, FramesChart))
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
	assert.Contains(t, string(html), "lit pixels")
	assert.Contains(t, string(html), peakColor.Hex(), "series use the heatmap hue")
}

func TestWrite_NoFrames(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	c := NewCollector()
	c.SetDecayCurve([]float64{500, 0.2})

	paths, err := c.Write(fsys, "reports", "empty")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("reports", "empty", DecayCurvePlot)}, paths)
}

func TestWrite_SanitisesRunID(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	paths, err := sampleCollector().Write(fsys, "reports", "../../escape")
	require.NoError(t, err)
	for _, p := range paths {
		assert.Equal(t, filepath.Join("reports", "escape"), filepath.Dir(p))
	}
	assert.False(t, fsys.HasPrefix(".."))
}

func TestWrite_RequiresDir(t *testing.T) {
	t.Parallel()
	_, err := sampleCollector().Write(fsutil.NewMemoryFileSystem(), "", "run")
	assert.Error(t, err)
}
