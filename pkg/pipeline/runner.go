package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geolod/pkg/cache"
	"github.com/matzehuels/geolod/pkg/errors"
	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
	"github.com/matzehuels/geolod/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete import → build → export pipeline with caching.
//
// The error is non-nil when the input cannot be read, the configuration is
// invalid, ctx is cancelled or an output cannot be written. Feature and
// group failures are reported on the stage results instead.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{}

	// Stage 1: Import
	importStart := time.Now()
	imp, hash, err := r.Import(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Import = imp
	result.InputHash = hash
	result.Stats.ImportTime = time.Since(importStart)
	result.Stats.InputFeatures = imp.Layer.Len()
	result.Stats.InputBytes = imp.Size
	result.Stats.InputPoints = imp.Points

	r.Logger.Info("read input",
		"features", imp.Layer.Len(),
		"rejected", len(imp.Rejected),
		"points", imp.Points,
		"duration", result.Stats.ImportTime)

	// Stage 2: Build
	buildStart := time.Now()
	pyr, info, err := r.Build(ctx, imp.Layer, hash, opts)
	if err != nil {
		return nil, err
	}
	result.Pyramid = pyr
	result.CacheInfo = info
	result.Stats.BuildTime = time.Since(buildStart)

	// Stage 3: Export
	if opts.SkipExport {
		return result, nil
	}
	exportStart := time.Now()
	result.Outputs, result.Combined, err = r.Export(pyr, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.ExportTime = time.Since(exportStart)
	return result, nil
}

// Import reads the input layer and returns it with the content hash that
// keys the first level in the cache.
func (r *Runner) Import(ctx context.Context, opts Options) (*lodio.ImportResult, string, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	imp, err := lodio.ImportLayer(opts.Input, opts.Config.Schema)
	if err != nil {
		return nil, "", err
	}
	for _, f := range imp.Rejected {
		opts.Logger.Debug("rejected input feature", "feature", f.Subject, "code", f.Code(), "err", f.Err)
	}
	reportImport(opts.Reporter, imp)

	fileHash, err := cache.HashFile(opts.Input)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidPath, err, "hash %s", opts.Input)
	}
	mapping, err := json.Marshal(opts.Config.Schema)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInternal, err, "encode schema mapping")
	}
	return imp, cache.Hash([]byte(fileHash + cache.Hash(mapping))), nil
}

// Build runs every level, finest first. A level whose predecessor produced
// no features is skipped, and so is every level after it.
//
// Each level is keyed by the key of the level before it (the input hash for
// the first level) and its own policy, so an unchanged chain is served
// entirely from the cache.
func (r *Runner) Build(ctx context.Context, input *lod.Layer, inputHash string, opts Options) (*lod.Pyramid, CacheInfo, error) {
	info := CacheInfo{LevelHits: make(map[lod.AdminLevel]bool)}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, info, err
	}

	b := opts.Config.Builder()
	b.Logger = opts.Logger
	b.Merger.Logger = opts.Logger

	p := &lod.Pyramid{}
	prev, key := input, inputHash
	for _, spec := range b.Levels {
		if prev.Len() == 0 {
			p.Stages = append(p.Stages, &lod.StageResult{Level: spec.Level, Status: lod.StatusSkipped})
			opts.Reporter.Report(LevelMetric(spec.Level, MetricStatus), lod.StatusSkipped)
			r.Logger.Warn("skipped level", "level", spec.Level, "reason", "no input features")
			prev = nil
			continue
		}

		res, levelKey, hit, err := r.BuildLevelWithCacheInfo(ctx, b, spec, prev, key, opts)
		if err != nil {
			return nil, info, fmt.Errorf("%s: %w", spec.Level, err)
		}
		info.LevelHits[spec.Level] = hit
		p.Stages = append(p.Stages, res)
		reportStage(opts.Reporter, res, hit)
		r.logStage(res, hit)

		prev, key = res.Layer, levelKey
	}
	return p, info, nil
}

// BuildLevelWithCacheInfo builds one level, consulting the cache first
// unless opts.Refresh is set. Only complete levels are cached. It returns the
// stage, its cache key and whether it was a cache hit.
func (r *Runner) BuildLevelWithCacheInfo(ctx context.Context, b *lod.Builder, spec lod.LevelSpec, input *lod.Layer, inputHash string, opts Options) (*lod.StageResult, string, bool, error) {
	key := r.Keyer.LevelKey(inputHash, levelKeyOpts(spec, b))
	hooks := observability.Cache()

	if !opts.Refresh {
		start := time.Now()
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			res, err := decodeLevel(data, spec)
			if err == nil {
				hooks.OnCacheHit(ctx, "level")
				res.Duration = time.Since(start)
				return res, key, true, nil
			}
			// Undecodable entry: rebuild and overwrite it.
			r.Logger.Debug("discarding cached level", "level", spec.Level, "err", err)
		} else if err != nil {
			r.Logger.Warn("cache read failed", "level", spec.Level, "err", err)
		}
		hooks.OnCacheMiss(ctx, "level")
	}

	res, err := b.BuildLevel(ctx, spec, input)
	if err != nil {
		return nil, "", false, err
	}

	if res.Status == lod.StatusComplete {
		if data, err := encodeLevel(res); err == nil {
			ttl, _ := opts.Config.CacheTTL()
			if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
				r.Logger.Warn("cache write failed", "level", spec.Level, "err", err)
			} else {
				hooks.OnCacheSet(ctx, "level", len(data))
			}
		}
	}
	return res, key, false, nil
}

// Export writes every usable level to its output file and, when
// configured, all usable levels to the combined file.
func (r *Runner) Export(p *lod.Pyramid, opts Options) (map[lod.AdminLevel]*lodio.ExportResult, *lodio.ExportResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	cfg := opts.Config

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create output directory %s", cfg.Output.Dir)
	}

	outputs := make(map[lod.AdminLevel]*lodio.ExportResult)
	for _, s := range p.Stages {
		if !s.Usable() {
			continue
		}
		res, err := lodio.ExportLayer(s.Layer, cfg.OutputPath(s.Level))
		if err != nil {
			return nil, nil, err
		}
		outputs[s.Level] = res
		reportExport(opts.Reporter, s.Level, res)
		r.Logger.Info("wrote level", "level", s.Level, "path", res.Path, "bytes", res.Size, "points", res.Points)
	}

	var combined *lodio.ExportResult
	if path := cfg.CombinedPath(); path != "" && len(outputs) > 0 {
		var err error
		combined, err = lodio.ExportLayers(path, p.CoarsestFirst()...)
		if err != nil {
			return nil, nil, err
		}
		r.Logger.Info("wrote combined file", "path", combined.Path, "features", combined.Features, "bytes", combined.Size)
	}
	return outputs, combined, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) logStage(res *lod.StageResult, cached bool) {
	fields := []any{
		"level", res.Level,
		"status", res.Status,
		"features", res.Layer.Len(),
		"cached", cached,
		"duration", res.Duration,
	}
	if res.PartsDropped > 0 {
		fields = append(fields, "parts_dropped", res.PartsDropped)
	}
	if len(res.Failures) == 0 {
		r.Logger.Info("built level", fields...)
		return
	}
	for code, n := range res.FailuresByCode() {
		fields = append(fields, string(code), n)
	}
	r.Logger.Warn("built level with failures", fields...)
	for _, f := range res.Failures {
		r.Logger.Debug("level failure", "level", f.Level, "subject", f.Subject, "code", f.Code(), "err", f.Err)
	}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func levelKeyOpts(spec lod.LevelSpec, b *lod.Builder) cache.LevelKeyOpts {
	p := b.Merger.Projection
	return cache.LevelKeyOpts{
		Level:             string(spec.Level),
		ZoomMin:           spec.Zoom.Min,
		ZoomMax:           spec.Zoom.Max,
		Tolerance:         spec.Tolerance,
		GapCloseDistance:  spec.GapCloseDistance,
		FragmentThreshold: spec.FragmentThreshold,
		Algorithm:         b.Algorithm,
		Projection:        fmt.Sprintf("%s:%s:%g", p.Mode, p.Frame, p.MaxZoneOffset),
		QuadSegments:      b.Merger.QuadSegments,
	}
}
