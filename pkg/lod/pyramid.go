package lod

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	"github.com/matzehuels/geolod/pkg/observability"
)

// LevelSpec describes how one level of the pyramid is built.
type LevelSpec struct {
	Level AdminLevel
	Zoom  ZoomRange
	// Key groups the previous level's features. Nil means the level is built
	// from the raw input by validation and simplification alone.
	Key KeySpec
	// GapCloseDistance is the dissolve buffer in metres.
	GapCloseDistance float64
	// FragmentThreshold is the minimum area share a part needs to survive;
	// zero disables the filter.
	FragmentThreshold float64
	// Tolerance is the simplification tolerance in degrees.
	Tolerance float64
}

// DefaultLevels returns the reference policy, finest level first.
func DefaultLevels() []LevelSpec {
	return []LevelSpec{
		{
			Level:     Kecamatan,
			Zoom:      DefaultZoom(Kecamatan),
			Tolerance: 0.0005,
		},
		{
			Level:            Kabupaten,
			Zoom:             DefaultZoom(Kabupaten),
			Key:              DistrictKey,
			GapCloseDistance: 100,
			Tolerance:        0.005,
		},
		{
			Level:             Provinsi,
			Zoom:              DefaultZoom(Provinsi),
			Key:               ProvinceKey,
			GapCloseDistance:  3000,
			FragmentThreshold: geometry.DefaultFragmentThreshold,
			Tolerance:         0.01,
		},
	}
}

// Validate checks the numeric parameters of s.
func (s LevelSpec) Validate() error {
	name := string(s.Level)
	if !s.Level.Valid() {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown level %q", s.Level)
	}
	if err := errors.ValidateZoomRange(name, s.Zoom.Min, s.Zoom.Max); err != nil {
		return err
	}
	if err := errors.ValidateTolerance(name+".tolerance", s.Tolerance); err != nil {
		return err
	}
	if err := errors.ValidateGapDistance(name+".gap_close_distance", s.GapCloseDistance); err != nil {
		return err
	}
	return errors.ValidateThreshold(name+".fragment_threshold", s.FragmentThreshold)
}

// Builder sequences validation, merging, fragment filtering and
// simplification across the levels of the pyramid.
type Builder struct {
	Levels    []LevelSpec
	Merger    *Merger
	Algorithm string
	Logger    *log.Logger
}

// NewBuilder returns a builder with the reference policy.
func NewBuilder() *Builder {
	return &Builder{
		Levels:    DefaultLevels(),
		Merger:    NewMerger(),
		Algorithm: geometry.AlgorithmTopology,
		Logger:    log.NewWithOptions(io.Discard, log.Options{}),
	}
}

// Build runs every level in order, feeding each level's output into the
// next. A level whose predecessor produced no features is skipped, and so is
// every level after it; earlier levels stay available.
//
// The error is non-nil only for an invalid level policy or a cancelled ctx.
func (b *Builder) Build(ctx context.Context, input *Layer) (*Pyramid, error) {
	for _, s := range b.Levels {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	p := &Pyramid{}
	prev := input
	for _, spec := range b.Levels {
		if prev.Len() == 0 {
			p.Stages = append(p.Stages, skipped(spec.Level))
			prev = nil
			continue
		}
		res, err := b.BuildLevel(ctx, spec, prev)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, res)
		prev = res.Layer
	}
	return p, nil
}

// BuildLevel builds one level from input. Levels with a key merge input by
// that key first; all levels then filter fragments (when a threshold is set)
// and simplify. The output layer is tagged with the level and zoom range of
// spec. input is not modified.
func (b *Builder) BuildLevel(ctx context.Context, spec LevelSpec, input *Layer) (*StageResult, error) {
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnLevelStart(ctx, string(spec.Level), input.Len())

	res, err := b.buildLevel(ctx, spec, input)
	if err != nil {
		hooks.OnLevelComplete(ctx, string(spec.Level), 0, 0, time.Since(start), err)
		return nil, err
	}
	res.Duration = time.Since(start)
	hooks.OnLevelComplete(ctx, string(spec.Level), res.Layer.Len(), len(res.Failures), res.Duration, nil)

	b.logger().Debug("built level",
		"level", spec.Level,
		"features", res.Layer.Len(),
		"failures", len(res.Failures),
		"status", res.Status,
		"duration", res.Duration)
	return res, nil
}

func (b *Builder) buildLevel(ctx context.Context, spec LevelSpec, input *Layer) (*StageResult, error) {
	if input.Len() == 0 {
		return skipped(spec.Level), nil
	}
	if err := checkGeographic(input); err != nil {
		return nil, err
	}

	res := &StageResult{Level: spec.Level, InputFeatures: input.Len()}
	features := input.Features
	merged := spec.Key != nil
	if merged {
		m, err := b.merger().Merge(ctx, input, spec.Key, spec.GapCloseDistance)
		if err != nil {
			return nil, err
		}
		res.Failures = m.Failures
		res.Groups = m.Groups
		features = m.Layer.Features
	}

	simp := geometry.NewSimplifier(b.Algorithm)
	simp.Logger = b.logger()

	type outcome struct {
		feature *Feature
		dropped int
		failure *Failure
	}
	outcomes := make([]outcome, len(features))
	mg := b.merger()
	err := forEach(ctx, mg.Workers, mg.QuadSegments, len(features), func(eng *geometry.Engine, i int) {
		f := features[i]
		g := f.Geometry
		if !merged {
			v, err := eng.Validate(g)
			if err != nil {
				outcomes[i].failure = &Failure{Subject: f.ID, Err: err}
				return
			}
			g = v
		}
		if spec.FragmentThreshold > 0 {
			before := geometry.NumParts(g)
			g = geometry.FilterFragments(g, spec.FragmentThreshold, geometry.GeodesicArea)
			outcomes[i].dropped = before - geometry.NumParts(g)
		}

		s := *simp
		s.Engine = eng
		sg, err := s.Simplify(g, spec.Tolerance)
		if err != nil {
			outcomes[i].failure = &Failure{Subject: f.ID, Err: err}
			return
		}

		out := f.withGeometry(sg)
		out.Level = spec.Level
		out.Zoom = spec.Zoom
		outcomes[i].feature = out
	})
	if err != nil {
		return nil, err
	}

	layer := &Layer{Level: spec.Level, Zoom: spec.Zoom, CRS: GeographicCRS}
	for _, o := range outcomes {
		if o.failure != nil {
			res.Failures = append(res.Failures, *o.failure)
			continue
		}
		layer.Features = append(layer.Features, o.feature)
		res.PartsDropped += o.dropped
	}
	if !merged {
		res.Groups = layer.Len()
	}
	res.Layer = layer
	res.settle()
	return res, nil
}

func (b *Builder) merger() *Merger {
	if b.Merger == nil {
		b.Merger = NewMerger()
	}
	return b.Merger
}

func (b *Builder) logger() *log.Logger {
	if b.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return b.Logger
}
