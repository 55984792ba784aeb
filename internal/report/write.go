package report

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dvsvideo/internal/fsutil"
	"github.com/banshee-data/dvsvideo/internal/security"
)

// Artifact file names inside a run directory.
const (
	LitPixelsPlot  = "lit_pixels.png"
	DecayCurvePlot = "decay_curve.png"
	FramesChart    = "frames.html"
)

// Write renders the collected statistics under dir/<runID>/ and returns the
// paths written. Per-frame artifacts are skipped when no frame was emitted.
func (c *Collector) Write(fsys fsutil.FileSystem, dir, runID string) ([]string, error) {
	if dir == "" {
		return nil, errors.New("report directory is empty")
	}
	runDir, err := security.ArtifactPath(dir, runID)
	if err != nil {
		return nil, err
	}
	if err := fsys.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	frames := c.Frames()
	curve := c.DecayCurve()
	var written []string

	emit := func(name string, render func(io.Writer) error) error {
		p, err := security.ArtifactPath(runDir, name)
		if err != nil {
			return err
		}
		f, err := fsys.Create(p)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := render(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
		written = append(written, p)
		return nil
	}

	if len(curve) > 0 {
		if err := emit(DecayCurvePlot, func(w io.Writer) error { return decayCurvePlot(w, curve) }); err != nil {
			return written, err
		}
	}
	if len(frames) > 0 {
		if err := emit(LitPixelsPlot, func(w io.Writer) error { return litPixelsPlot(w, frames) }); err != nil {
			return written, err
		}
		if err := emit(FramesChart, func(w io.Writer) error { return framesChart(w, frames, runID) }); err != nil {
			return written, err
		}
	}

	log.Printf("[Report] wrote %d artifacts to %s", len(written), runDir)
	return written, nil
}

// Series colours sit on the heatmap's own hue sweep: fresh activity at the
// peak hue, raw activations at the start of the sweep.
var (
	peakColor       = colorful.Hsv(250, 1, 1)
	activationColor = colorful.Hsv(0, 1, 1)
)

func savePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func decayCurvePlot(w io.Writer, curve []float64) error {
	p := plot.New()
	p.Title.Text = "Decay curve"
	p.X.Label.Text = "bucket"
	p.Y.Label.Text = "intensity"

	pts := make(plotter.XYs, len(curve))
	for i, v := range curve {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	line.Color = peakColor
	p.Add(line, plotter.NewGrid())
	return savePNG(w, p)
}

func litPixelsPlot(w io.Writer, frames []FrameStat) error {
	p := plot.New()
	p.Title.Text = "Lit pixels per frame"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "pixels"

	lit := make(plotter.XYs, len(frames))
	events := make(plotter.XYs, len(frames))
	for i, f := range frames {
		lit[i] = plotter.XY{X: float64(f.Seq), Y: float64(f.LitPixels)}
		events[i] = plotter.XY{X: float64(f.Seq), Y: float64(f.Activations)}
	}
	litLine, err := plotter.NewLine(lit)
	if err != nil {
		return err
	}
	litLine.Width = vg.Points(1)
	litLine.Color = peakColor
	actLine, err := plotter.NewLine(events)
	if err != nil {
		return err
	}
	actLine.Width = vg.Points(1)
	actLine.Color = activationColor
	actLine.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}

	p.Add(litLine, actLine, plotter.NewGrid())
	p.Legend.Add("lit pixels", litLine)
	p.Legend.Add("activations", actLine)
	p.Legend.Top = true
	return savePNG(w, p)
}

func framesChart(w io.Writer, frames []FrameStat, runID string) error {
	x := make([]string, len(frames))
	lit := make([]opts.LineData, len(frames))
	events := make([]opts.LineData, len(frames))
	for i, f := range frames {
		x[i] = strconv.Itoa(f.Seq)
		lit[i] = opts.LineData{Value: f.LitPixels}
		events[i] = opts.LineData{Value: f.Events}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "DVS render " + runID, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Frame activity", Subtitle: fmt.Sprintf("run=%s frames=%d", runID, len(frames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	line.SetXAxis(x).
		AddSeries("lit pixels", lit, charts.WithLineStyleOpts(opts.LineStyle{Color: peakColor.Hex()})).
		AddSeries("events", events, charts.WithLineStyleOpts(opts.LineStyle{Color: activationColor.Hex()}))
	return line.Render(w)
}
