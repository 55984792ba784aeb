// Command dvsvideo renders a DVS event log into a recency-heatmap MJPEG AVI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/dvsvideo/internal/config"
	"github.com/banshee-data/dvsvideo/internal/dvs/l1events"
	"github.com/banshee-data/dvsvideo/internal/dvs/pipeline"
	"github.com/banshee-data/dvsvideo/internal/fsutil"
	"github.com/banshee-data/dvsvideo/internal/report"
	"github.com/banshee-data/dvsvideo/internal/rundb"
	"github.com/banshee-data/dvsvideo/internal/telemetry"
	"github.com/banshee-data/dvsvideo/internal/version"
	"github.com/banshee-data/dvsvideo/internal/video"
)

// cliFlags holds the command line surface. Flag defaults mirror
// config.Defaults, but only flags given explicitly override the lower
// layers (profile, environment).
type cliFlags struct {
	file       *string
	decayRate  *float64
	frameRate  *int
	medianBlur *int
	output     *string
	frameWidth *int
	workers    *int
	profile    *string
	dbPath     *string
	reportDir  *string
	listRuns   *bool
	version    *bool
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	return &cliFlags{
		file:       fs.String("file", config.DefaultInputFile, "Path to the event CSV (timestamp,x,y,polarity)"),
		decayRate:  fs.Float64("decay-rate", config.DefaultDecayRate, "Fraction of intensity lost per frame interval, in (0, 1); the decay curve is sampled every two intervals"),
		frameRate:  fs.Int("framerate", config.DefaultFrameRate, "Frames per second of event time (1-120)"),
		medianBlur: fs.Int("medianblur", config.DefaultMedianBlur, "Median blur kernel size (odd, 1-13)"),
		output:     fs.String("output", config.DefaultOutput, "Output base name; .avi is appended"),
		frameWidth: fs.Int("frame-width", config.DefaultFrameWidth, "Width of the encoded frames; height keeps the sensor aspect"),
		workers:    fs.Int("workers", config.DefaultWorkers, "Transform workers (0 = 2x GOMAXPROCS)"),
		profile:    fs.String("config", "", "Optional JSON or YAML render profile"),
		dbPath:     fs.String("db", "", "Optional SQLite run history database"),
		reportDir:  fs.String("report-dir", "", "Optional directory for per-run plots and charts"),
		listRuns:   fs.Bool("list-runs", false, "List recent runs from -db and exit"),
		version:    fs.Bool("version", false, "Print version information and exit"),
	}
}

var flags = registerFlags(flag.CommandLine)

// overrides returns a config holding only the flags set on fs.
func (f *cliFlags) overrides(fs *flag.FlagSet) *config.RenderConfig {
	o := &config.RenderConfig{}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "file":
			o.InputFile = f.file
		case "decay-rate":
			o.DecayRate = f.decayRate
		case "framerate":
			o.FrameRate = f.frameRate
		case "medianblur":
			o.MedianBlur = f.medianBlur
		case "output":
			o.Output = f.output
		case "frame-width":
			o.FrameWidth = f.frameWidth
		case "workers":
			o.Workers = f.workers
		case "db":
			o.DBPath = f.dbPath
		case "report-dir":
			o.ReportDir = f.reportDir
		}
	})
	return o
}

// loadConfig layers defaults, the optional profile, the environment and
// explicit flags, in increasing precedence, and validates the result.
func loadConfig(fsys fsutil.FileSystem, fs *flag.FlagSet, f *cliFlags, fromEnv func() (*config.RenderConfig, error)) (*config.RenderConfig, error) {
	cfg := config.Defaults()
	if *f.profile != "" {
		p, err := config.LoadFile(fsys, *f.profile)
		if err != nil {
			return nil, err
		}
		cfg.Merge(p)
	}
	envCfg, err := fromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Merge(envCfg)
	cfg.Merge(f.overrides(fs))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printConfig(w io.Writer, cfg *config.RenderConfig) {
	outW, outH := cfg.OutputSize()
	fmt.Fprintf(w, "File Name:   %s\n", cfg.GetInputFile())
	fmt.Fprintf(w, "Decay Rate:  %g\n", cfg.GetDecayRate())
	fmt.Fprintf(w, "Frame Rate:  %d\n", cfg.GetFrameRate())
	fmt.Fprintf(w, "Median Blur: %d\n", cfg.GetMedianBlur())
	fmt.Fprintf(w, "Output:      %s (%dx%d)\n", video.AVIPath(cfg.GetOutput()), outW, outH)
}

func main() {
	flag.Parse()

	if *flags.version {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, fsutil.OSFileSystem{}, flag.CommandLine, flags, os.Stdout)
	stop()
	if err != nil {
		log.Fatalf("dvsvideo: %v", err)
	}
}

func run(ctx context.Context, fsys fsutil.FileSystem, fs *flag.FlagSet, f *cliFlags, out io.Writer) error {
	cfg, err := loadConfig(fsys, fs, f, config.FromEnv)
	if err != nil {
		return err
	}

	if *f.listRuns {
		return listRuns(out, cfg.GetDBPath())
	}

	printConfig(out, cfg)

	shutdown, err := telemetry.Setup(ctx, "dvsvideo", version.Version)
	if err != nil {
		log.Printf("[Telemetry] tracing disabled: %v", err)
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Printf("[Telemetry] shutdown: %v", err)
			}
		}()
	}

	var runs *rundb.DB
	if p := cfg.GetDBPath(); p != "" {
		runs, err = rundb.Open(p)
		if err != nil {
			return fmt.Errorf("open run database: %w", err)
		}
		defer runs.Close()
	}

	return render(ctx, fsys, cfg, runs, out)
}

// render performs one run. runs may be nil.
func render(ctx context.Context, fsys fsutil.FileSystem, cfg *config.RenderConfig, runs *rundb.DB, out io.Writer) error {
	geometry := l1events.Geometry{
		Width:   cfg.GetSensorWidth(),
		Height:  cfg.GetSensorHeight(),
		MirrorX: cfg.GetMirrorX(),
		MirrorY: cfg.GetMirrorY(),
	}
	reader, err := l1events.OpenFile(fsys, cfg.GetInputFile(), geometry)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer reader.Close()

	outW, outH := cfg.OutputSize()
	outPath := video.AVIPath(cfg.GetOutput())
	enc, err := video.NewAVIWriter(outPath, outW, outH, cfg.GetFrameRate(), cfg.GetJPEGQuality())
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	// Run closes the encoder; this covers failures before its writer starts.
	defer enc.Close()

	var runID string
	if runs != nil {
		runID, err = runs.StartRun(rundb.RunRecord{
			Version:    version.Version,
			InputPath:  cfg.GetInputFile(),
			OutputPath: outPath,
			DecayRate:  cfg.GetDecayRate(),
			FrameRate:  cfg.GetFrameRate(),
			MedianBlur: cfg.GetMedianBlur(),
			FrameWidth: outW,
			Workers:    cfg.GetWorkers(),
		})
		if err != nil {
			return err
		}
	}

	var collector *report.Collector
	if cfg.GetReportDir() != "" {
		collector = report.NewCollector()
	}

	summary, runErr := pipeline.Run(ctx, reader, enc, pipeline.Options{
		FrameRate:        cfg.GetFrameRate(),
		DecayRate:        cfg.GetDecayRate(),
		SensorWidth:      cfg.GetSensorWidth(),
		SensorHeight:     cfg.GetSensorHeight(),
		OutputWidth:      outW,
		OutputHeight:     outH,
		BlurSize:         cfg.GetMedianBlur(),
		Workers:          cfg.GetWorkers(),
		Collector:        collector,
		ProgressInterval: cfg.GetProgressInterval(),
	})

	if runs != nil {
		if err := runs.FinishRun(runID, rundb.RunResult{
			Events:          summary.Events,
			Activations:     summary.Activations,
			Frames:          summary.FramesWritten,
			MaxReorderDepth: summary.MaxReorderDepth,
			Duration:        summary.TotalDuration,
			Err:             runErr,
		}); err != nil {
			log.Printf("[RunDB] record run %s: %v", runID, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if collector != nil {
		id := runID
		if id == "" {
			id = "run-" + strconv.FormatInt(time.Now().Unix(), 10)
		}
		paths, err := collector.Write(fsys, cfg.GetReportDir(), id)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		for _, p := range paths {
			fmt.Fprintf(out, "Report:      %s\n", p)
		}
		s := collector.Summarize()
		fmt.Fprintf(out, "Lit pixels:  mean %.1f sd %.1f max %.0f\n", s.LitMean, s.LitStdDev, s.LitMax)
		fmt.Fprintf(out, "Events:      mean %.1f sd %.1f max %.0f per frame\n", s.EventsMean, s.EventsStdDev, s.EventsMax)
	}

	fmt.Fprintf(out, "Frames:      %d (%d events, %d workers, reorder depth %d)\n",
		summary.FramesWritten, summary.Events, summary.Workers, summary.MaxReorderDepth)
	fmt.Fprintf(out, "Time to read file:  %s\n", summary.ReadDuration)
	fmt.Fprintf(out, "Time to write file: %s\n", summary.TotalDuration)
	return nil
}

func listRuns(w io.Writer, dbPath string) error {
	if dbPath == "" {
		return errors.New("-list-runs requires -db")
	}
	runs, err := rundb.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	defer runs.Close()

	recs, err := runs.ListRuns(rundb.DefaultListLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tFRAMES\tDURATION\tINPUT\tOUTPUT")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.RunID, r.StartedAt.Format(time.RFC3339), r.Status, r.Frames,
			time.Duration(r.DurationMS)*time.Millisecond, r.InputPath, r.OutputPath)
	}
	return tw.Flush()
}
