package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/dvsvideo/internal/dvs/l3color"
	"github.com/banshee-data/dvsvideo/internal/dvs/transform"
)

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int { return 2 * runtime.GOMAXPROCS(0) }

// Result is a transformed frame tagged with its emission sequence number.
type Result struct {
	Seq   int
	Image *image.RGBA
}

// TransformPool runs the resize and median steps on a fixed set of workers.
// Completion order is not emission order.
type TransformPool struct {
	tr        *transform.Transformer
	workers   int
	tasks     chan l3color.ColorFrame // capacity = workers
	results   chan Result
	closeOnce sync.Once
}

// NewTransformPool sizes the pool; workers <= 0 selects DefaultWorkers.
func NewTransformPool(tr *transform.Transformer, workers int) *TransformPool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &TransformPool{
		tr:      tr,
		workers: workers,
		tasks:   make(chan l3color.ColorFrame, workers),
		results: make(chan Result, workers),
	}
}

// Workers returns the number of worker goroutines.
func (p *TransformPool) Workers() int { return p.workers }

// Submit queues a frame, blocking while the task queue is full.
func (p *TransformPool) Submit(ctx context.Context, f l3color.ColorFrame) error {
	select {
	case p.tasks <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more frames will be submitted.
func (p *TransformPool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
}

// Results delivers completed frames. It is closed once every worker exits.
func (p *TransformPool) Results() <-chan Result { return p.results }

// Run starts the workers and blocks until the task queue is drained and
// closed, or a worker fails, or ctx is cancelled.
func (p *TransformPool) Run(ctx context.Context) error {
	defer close(p.results)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error { return p.work(gctx) })
	}
	return g.Wait()
}

func (p *TransformPool) work(ctx context.Context) error {
	for {
		var f l3color.ColorFrame
		var ok bool
		select {
		case f, ok = <-p.tasks:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		img, err := p.tr.Apply(f.Image)
		if err != nil {
			return fmt.Errorf("transform frame %d: %w", f.Seq, err)
		}
		select {
		case p.results <- Result{Seq: f.Seq, Image: img}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
