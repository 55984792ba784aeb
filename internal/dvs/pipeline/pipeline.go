package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/dvsvideo/internal/dvs/l1events"
	"github.com/banshee-data/dvsvideo/internal/dvs/l2frames"
	"github.com/banshee-data/dvsvideo/internal/dvs/l3color"
	"github.com/banshee-data/dvsvideo/internal/dvs/transform"
	"github.com/banshee-data/dvsvideo/internal/monitoring"
	"github.com/banshee-data/dvsvideo/internal/report"
	"github.com/banshee-data/dvsvideo/internal/timeutil"
	"github.com/banshee-data/dvsvideo/internal/video"
)

const tracerName = "github.com/banshee-data/dvsvideo/internal/dvs/pipeline"

// ctxCheckEvery is how many events the ingest loop reads between
// cancellation checks when no frame is being emitted.
const ctxCheckEvery = 4096

// EventSource yields events in non-decreasing timestamp order and returns
// io.EOF after the last one. *l1events.Reader satisfies it.
type EventSource interface {
	Next() (l1events.Event, error)
}

// Options configures one render.
type Options struct {
	FrameRate    int     // frames per second of event time, 1..120
	DecayRate    float64 // (0, 1)
	SensorWidth  int
	SensorHeight int
	OutputWidth  int
	OutputHeight int
	BlurSize     int // odd, 1..13
	Workers      int // 0 selects DefaultWorkers

	Clock            timeutil.Clock       // nil uses the wall clock
	Stats            *monitoring.RunStats // nil allocates one
	Collector        *report.Collector    // optional per-frame statistics
	ProgressInterval time.Duration        // 0 disables progress logging
}

// Summary describes a finished render.
type Summary struct {
	Events          int64
	Activations     int64
	FramesEmitted   int
	FramesWritten   int
	MaxReorderDepth int
	Workers         int
	ReadDuration    time.Duration // until the last event was consumed
	TotalDuration   time.Duration // until the encoder was closed
}

// Run renders src into enc. It returns nil only when every event was read
// and every emitted frame was encoded in order. The encoder is closed before
// Run returns whenever the writer stage was reached.
func Run(ctx context.Context, src EventSource, enc video.Encoder, opts Options) (Summary, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Stats == nil {
		opts.Stats = &monitoring.RunStats{}
	}
	if opts.FrameRate <= 0 {
		return Summary{}, fmt.Errorf("frame rate must be positive, got %d", opts.FrameRate)
	}
	if opts.SensorWidth <= 0 || opts.SensorHeight <= 0 {
		return Summary{}, fmt.Errorf("sensor size must be positive, got %dx%d", opts.SensorWidth, opts.SensorHeight)
	}

	interval := l2frames.FrameInterval(opts.FrameRate)
	curve, err := l3color.BuildDecayCurve(interval, opts.DecayRate)
	if err != nil {
		return Summary{}, err
	}
	tr, err := transform.New(opts.OutputWidth, opts.OutputHeight, opts.BlurSize)
	if err != nil {
		return Summary{}, err
	}
	mapper := l3color.NewColorMapper(interval, curve, l3color.BuildHueGradient())
	if opts.Collector != nil {
		opts.Collector.SetDecayCurve(curve.Values())
	}

	pool := NewTransformPool(tr, opts.Workers)
	writer := NewReorderWriter(enc, opts.Stats)

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "render", trace.WithAttributes(
		attribute.Int("dvs.frame_rate", opts.FrameRate),
		attribute.Float64("dvs.decay_rate", opts.DecayRate),
		attribute.Int("dvs.median_blur", opts.BlurSize),
		attribute.Int("dvs.workers", pool.Workers()),
		attribute.Int("dvs.decay_buckets", curve.Len()),
	))
	defer span.End()

	log.Printf("[Pipeline] interval=%dµs decay_buckets=%d workers=%d output=%dx%d",
		interval, curve.Len(), pool.Workers(), opts.OutputWidth, opts.OutputHeight)

	start := opts.Clock.Now()
	var readDone time.Duration

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan l3color.ColorFrame, 3*opts.FrameRate)

	progressCtx, stopProgress := context.WithCancel(gctx)
	defer stopProgress()
	go opts.Stats.LogProgress(progressCtx, opts.Clock, opts.ProgressInterval)

	ing := &ingester{
		src:       src,
		grid:      l2frames.NewGrid(opts.SensorWidth, opts.SensorHeight),
		emitter:   l2frames.NewEmitter(interval),
		mapper:    mapper,
		stats:     opts.Stats,
		collector: opts.Collector,
	}

	g.Go(func() error {
		defer close(frames)
		sctx, s := tracer.Start(gctx, "ingest")
		defer s.End()
		err := ing.run(sctx, frames)
		readDone = opts.Clock.Since(start)
		return endSpan(s, err)
	})

	g.Go(func() error {
		defer pool.Close()
		for f := range frames {
			if err := pool.Submit(gctx, f); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		_, s := tracer.Start(gctx, "transform")
		defer s.End()
		return endSpan(s, pool.Run(gctx))
	})

	g.Go(func() error {
		_, s := tracer.Start(gctx, "write")
		defer s.End()
		for r := range pool.Results() {
			if err := writer.Submit(r.Seq, r.Image); err != nil {
				_ = writer.Close()
				return endSpan(s, err)
			}
		}
		if err := gctx.Err(); err != nil {
			_ = writer.Close()
			return err
		}
		return endSpan(s, writer.Close())
	})

	err = g.Wait()
	snap := opts.Stats.Snapshot()
	sum := Summary{
		Events:          snap.Events,
		Activations:     snap.Activations,
		FramesEmitted:   ing.emitter.Emitted(),
		FramesWritten:   writer.Written(),
		MaxReorderDepth: writer.MaxPending(),
		Workers:         pool.Workers(),
		ReadDuration:    readDone,
		TotalDuration:   opts.Clock.Since(start),
	}
	span.SetAttributes(
		attribute.Int64("dvs.events", sum.Events),
		attribute.Int("dvs.frames", sum.FramesWritten),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("[Pipeline] aborted after %d events, %d/%d frames written: %v",
			sum.Events, sum.FramesWritten, sum.FramesEmitted, err)
		return sum, err
	}
	log.Printf("[Pipeline] done: events=%d activations=%d frames=%d reorder_max=%d read=%s total=%s",
		sum.Events, sum.Activations, sum.FramesWritten, sum.MaxReorderDepth, sum.ReadDuration, sum.TotalDuration)
	return sum, nil
}

func endSpan(s trace.Span, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ingester owns the grid. Every snapshot is colour-mapped here, before the
// triggering event is applied, so the grid is never read concurrently.
type ingester struct {
	src       EventSource
	grid      *l2frames.Grid
	emitter   *l2frames.Emitter
	mapper    *l3color.ColorMapper
	stats     *monitoring.RunStats
	collector *report.Collector

	frameEvents      int // events applied since the last frame
	frameActivations int
}

func (in *ingester) run(ctx context.Context, out chan<- l3color.ColorFrame) error {
	for n := 1; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		ev, err := in.src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		in.stats.AddEvent(ev.Activation)

		if b, ok := in.emitter.Observe(ev.Timestamp); ok {
			frame := in.mapper.Map(in.grid, b)
			if in.collector != nil {
				in.collector.Record(report.FrameStat{
					Seq:         frame.Seq,
					Boundary:    frame.Boundary,
					Events:      in.frameEvents,
					Activations: in.frameActivations,
					LitPixels:   frame.LitPixels,
				})
			}
			in.frameEvents, in.frameActivations = 0, 0
			in.stats.FrameEmitted()

			select {
			case out <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := in.grid.Apply(ev); err != nil {
			return fmt.Errorf("event at %dµs: %w", ev.Timestamp, err)
		}
		in.frameEvents++
		if ev.Activation {
			in.frameActivations++
		}
	}
}
