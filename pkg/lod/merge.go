package lod

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	"github.com/matzehuels/geolod/pkg/observability"
)

// ProjectionMode selects how the metric frame for buffering is chosen.
type ProjectionMode string

// Projection modes.
const (
	// ProjectionFixed uses one configured frame for every group.
	ProjectionFixed ProjectionMode = "fixed"
	// ProjectionDataset picks one frame from the extent of the input layer.
	ProjectionDataset ProjectionMode = "dataset"
	// ProjectionGroup picks a frame per group from the group's extent.
	ProjectionGroup ProjectionMode = "group"
)

// ParseProjectionMode parses a mode name. An empty string selects
// ProjectionGroup.
func ParseProjectionMode(s string) (ProjectionMode, error) {
	switch m := ProjectionMode(s); m {
	case "":
		return ProjectionGroup, nil
	case ProjectionFixed, ProjectionDataset, ProjectionGroup:
		return m, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown projection mode %q (want fixed, dataset or group)", s)
}

// Projection configures metric frame selection.
type Projection struct {
	Mode ProjectionMode
	// Frame is used by ProjectionFixed.
	Frame geometry.Frame
	// MaxZoneOffset bounds the longitude distance from the central meridian;
	// zero keeps geometry.DefaultMaxZoneOffset.
	MaxZoneOffset float64
}

// DefaultProjection picks a UTM zone per group.
func DefaultProjection() Projection {
	return Projection{Mode: ProjectionGroup, Frame: geometry.ReferenceFrame}
}

// Merger dissolves features that share a hierarchy key.
type Merger struct {
	Projection   Projection
	Workers      int
	QuadSegments int
	Logger       *log.Logger
}

// NewMerger returns a merger with per-group projection and one worker per CPU.
func NewMerger() *Merger {
	return &Merger{
		Projection:   DefaultProjection(),
		Workers:      DefaultWorkers(),
		QuadSegments: geometry.DefaultQuadSegments,
		Logger:       log.NewWithOptions(io.Discard, log.Options{}),
	}
}

type groupOutcome struct {
	feature  *Feature
	failures []Failure
}

// Merge dissolves the features of layer into one feature per distinct key.
//
// Every input geometry is validated, every group is projected into a metric
// frame, buffered outward by gapCloseDistance metres, unioned, buffered back
// inward, cleaned with a zero-width buffer, projected back to WGS84 and
// validated again. The output feature of a group carries the group's key
// attributes, its key string as ID and the IDs of its members as Sources.
//
// Features and groups that fail are recorded on the result and excluded.
// The returned error is non-nil only when ctx is cancelled, in which case no
// result is returned.
func (m *Merger) Merge(ctx context.Context, layer *Layer, key KeySpec, gapCloseDistance float64) (*StageResult, error) {
	start := time.Now()
	level := layer.Level.Coarser()
	res := &StageResult{Level: level, InputFeatures: layer.Len()}

	if err := errors.ValidateGapDistance("gap_close_distance", gapCloseDistance); err != nil {
		return nil, err
	}
	if err := checkGeographic(layer); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups, failures := GroupBy(layer.Features, key)
	res.Failures = append(res.Failures, failures...)
	res.Groups = len(groups)

	var datasetFrame geometry.Frame
	if m.Projection.Mode == ProjectionDataset && layer.Len() > 0 {
		datasetFrame = geometry.SelectFrame(layer.Bound())
	}

	outcomes := make([]groupOutcome, len(groups))
	err := forEach(ctx, m.Workers, m.QuadSegments, len(groups), func(eng *geometry.Engine, i int) {
		t := time.Now()
		outcomes[i] = m.mergeGroup(eng, groups[i], key, gapCloseDistance, datasetFrame)
		var gerr error
		if outcomes[i].feature == nil {
			gerr = errors.New(errors.ErrCodeEmptyMerge, "group %s emitted no feature", groups[i].Key)
		}
		observability.Pipeline().OnGroupMerged(ctx, string(level), groups[i].Key.String(), len(groups[i].Members), time.Since(t), gerr)
	})
	if err != nil {
		return nil, err
	}

	out := &Layer{Level: level, Zoom: DefaultZoom(level), CRS: GeographicCRS}
	for _, o := range outcomes {
		res.Failures = append(res.Failures, o.failures...)
		if o.feature != nil {
			out.Features = append(out.Features, o.feature)
		}
	}
	res.Layer = out
	res.Duration = time.Since(start)
	res.settle()
	return res, nil
}

// mergeGroup runs the dissolve for one group on eng.
func (m *Merger) mergeGroup(eng *geometry.Engine, g Group, key KeySpec, distance float64, datasetFrame geometry.Frame) groupOutcome {
	var out groupOutcome
	subject := g.Key.String()

	valid := make([]orb.Geometry, 0, len(g.Members))
	sources := make([]string, 0, len(g.Members))
	for _, f := range g.Members {
		v, err := eng.Validate(f.Geometry)
		if err != nil {
			out.failures = append(out.failures, Failure{Subject: f.ID, Err: err})
			continue
		}
		valid = append(valid, v)
		sources = append(sources, f.ID)
	}

	frame := m.frameFor(valid, datasetFrame)
	proj := geometry.NewProjector(frame).WithMaxZoneOffset(m.Projection.MaxZoneOffset)
	defer proj.Close()

	metric := make([]orb.Geometry, 0, len(valid))
	kept := make([]string, 0, len(valid))
	for i, v := range valid {
		mg, err := proj.ToMetric(v)
		if err != nil {
			out.failures = append(out.failures, Failure{Subject: sources[i], Err: err})
			continue
		}
		metric = append(metric, mg)
		kept = append(kept, sources[i])
	}
	if len(metric) == 0 {
		out.failures = append(out.failures, Failure{
			Subject: subject,
			Err:     errors.New(errors.ErrCodeEmptyMerge, "no member of %d survived validation and projection", len(g.Members)),
		})
		return out
	}

	dissolved, err := eng.Dissolve(metric, distance)
	if err != nil {
		out.failures = append(out.failures, Failure{Subject: subject, Err: err})
		return out
	}
	geo, err := proj.ToGeographic(dissolved)
	if err != nil {
		out.failures = append(out.failures, Failure{Subject: subject, Err: err})
		return out
	}
	geo, err = eng.Validate(geo)
	if err != nil {
		out.failures = append(out.failures, Failure{Subject: subject, Err: err})
		return out
	}

	props := make(map[string]any, len(key))
	first := g.Members[0]
	for _, attr := range key {
		props[attr] = first.Properties[attr]
	}
	out.feature = &Feature{
		ID:         subject,
		Geometry:   geo,
		Properties: props,
		Sources:    kept,
	}

	m.logger().Debug("merged group",
		"group", subject,
		"members", len(g.Members),
		"parts", geometry.NumParts(geo),
		"frame", frame)
	return out
}

// frameFor returns the metric frame for a group according to the mode.
func (m *Merger) frameFor(members []orb.Geometry, datasetFrame geometry.Frame) geometry.Frame {
	switch m.Projection.Mode {
	case ProjectionFixed:
		return m.Projection.Frame
	case ProjectionDataset:
		if datasetFrame.Valid() {
			return datasetFrame
		}
	}
	if len(members) == 0 {
		return m.Projection.Frame
	}
	b := members[0].Bound()
	for _, g := range members[1:] {
		b = b.Union(g.Bound())
	}
	return geometry.SelectFrame(b)
}

func (m *Merger) logger() *log.Logger {
	if m.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return m.Logger
}
