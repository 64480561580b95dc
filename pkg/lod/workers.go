package lod

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/geolod/pkg/geometry"
)

// DefaultWorkers returns the default per-group parallelism.
func DefaultWorkers() int { return runtime.NumCPU() }

// forEach calls fn for i in [0, n) on at most workers goroutines. Each
// goroutine holds its own GEOS engine for the duration of a call. fn records
// results at index i, so output order never depends on completion order.
// The returned error is the context error if ctx was cancelled.
func forEach(ctx context.Context, workers, quadSegs, n int, fn func(eng *geometry.Engine, i int)) error {
	if workers < 1 {
		workers = DefaultWorkers()
	}
	if workers > n {
		workers = n
	}
	if n == 0 {
		return ctx.Err()
	}

	engines := make(chan *geometry.Engine, workers)
	for range workers {
		engines <- geometry.NewEngine().WithQuadSegments(quadSegs)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			eng := <-engines
			defer func() { engines <- eng }()
			fn(eng, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
