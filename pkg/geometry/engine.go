package geometry

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"

	"github.com/matzehuels/geolod/pkg/errors"
)

// DefaultQuadSegments is the number of segments used to approximate a quarter
// circle when buffering.
const DefaultQuadSegments = 16

// Engine runs GEOS operations inside its own context.
type Engine struct {
	ctx      *geos.Context
	quadSegs int
}

// NewEngine creates an engine with a fresh GEOS context.
func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext(), quadSegs: DefaultQuadSegments}
}

// WithQuadSegments sets the buffer quadrant segment count and returns e.
// Values below 1 are ignored.
func (e *Engine) WithQuadSegments(n int) *Engine {
	if n > 0 {
		e.quadSegs = n
	}
	return e
}

var enginePool = sync.Pool{New: func() any { return NewEngine() }}

// Validate repairs g using a pooled engine. See [Engine.Validate].
func Validate(g orb.Geometry) (orb.Geometry, error) {
	e := enginePool.Get().(*Engine)
	defer enginePool.Put(e)
	return e.Validate(g)
}

// IsValid reports whether g is a valid polygonal geometry, with the GEOS
// reason when it is not.
func (e *Engine) IsValid(g orb.Geometry) (bool, string) {
	if !IsPolygonal(g) {
		return false, "not polygonal"
	}
	gg, err := toGeos(e.ctx, g)
	if err != nil {
		return false, err.Error()
	}
	if gg.IsValid() {
		return true, ""
	}
	return false, gg.IsValidReason()
}

// Validate returns a topologically valid version of g.
//
// Open rings are closed and rings with fewer than four positions are dropped
// before GEOS sees the geometry. An already valid geometry comes back as an
// equal copy, so Validate is idempotent. Invalid input is repaired with
// MakeValid and reduced to its polygonal parts. If nothing with positive
// area survives the error has code GEOMETRY_REPAIR_FAILED.
func (e *Engine) Validate(g orb.Geometry) (orb.Geometry, error) {
	if !IsPolygonal(g) {
		return nil, errors.New(errors.ErrCodeUnsupportedGeometry, "expected Polygon or MultiPolygon, got %T", g)
	}

	prepared := closeRings(g)
	if prepared == nil {
		return nil, errors.New(errors.ErrCodeGeometryRepair, "no ring encloses an area")
	}

	gg, err := toGeos(e.ctx, prepared)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGeometryRepair, err, "convert to GEOS")
	}
	if gg.IsValid() {
		if gg.Area() <= 0 {
			return nil, errors.New(errors.ErrCodeGeometryRepair, "geometry has zero area")
		}
		return prepared, nil
	}

	reason := gg.IsValidReason()
	repaired := gg.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
	if repaired == nil || repaired.IsEmpty() {
		return nil, errors.New(errors.ErrCodeGeometryRepair, "repair produced no geometry (%s)", reason)
	}

	out, err := fromGeos(repaired)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGeometryRepair, err, "convert repaired geometry")
	}
	out = Polygonal(out)
	if out == nil {
		return nil, errors.New(errors.ErrCodeGeometryRepair, "repair left no polygonal parts (%s)", reason)
	}

	// MakeValid can return overlapping polygon pieces inside a collection;
	// a zero-width buffer dissolves them into one valid shape.
	check, err := toGeos(e.ctx, out)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGeometryRepair, err, "convert repaired geometry")
	}
	if !check.IsValid() {
		check = check.Buffer(0, e.quadSegs)
		if out, err = fromGeos(check); err != nil {
			return nil, errors.Wrap(errors.ErrCodeGeometryRepair, err, "convert cleaned geometry")
		}
		out = Polygonal(out)
	}
	if out == nil || check.Area() <= 0 {
		return nil, errors.New(errors.ErrCodeGeometryRepair, "repair collapsed to zero area (%s)", reason)
	}
	return out, nil
}

// Dissolve merges members into one polygonal geometry using the
// expand → union → shrink → clean technique. distance is in the units of
// the members' frame and closes gaps up to roughly twice its width. The
// zero-width cleanup buffer always runs because the shrink is not an exact
// inverse of the expand.
//
// A result with no area has code EMPTY_MERGE_RESULT.
func (e *Engine) Dissolve(members []orb.Geometry, distance float64) (orb.Geometry, error) {
	if len(members) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyMerge, "no members to dissolve")
	}

	expanded := make([]*geos.Geom, 0, len(members))
	for _, m := range members {
		gg, err := toGeos(e.ctx, m)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert member")
		}
		if distance > 0 {
			gg = gg.Buffer(distance, e.quadSegs)
		}
		expanded = append(expanded, gg)
	}

	var merged *geos.Geom
	if len(expanded) == 1 {
		merged = expanded[0].UnaryUnion()
	} else {
		merged = e.ctx.NewCollection(geos.TypeIDGeometryCollection, expanded).UnaryUnion()
	}
	if distance > 0 {
		merged = merged.Buffer(-distance, e.quadSegs)
	}
	merged = merged.Buffer(0, e.quadSegs)

	if merged == nil || merged.IsEmpty() || merged.Area() <= 0 {
		return nil, errors.New(errors.ErrCodeEmptyMerge, "dissolve collapsed to zero area")
	}

	out, err := fromGeos(merged)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert dissolved geometry")
	}
	if out = Polygonal(out); out == nil {
		return nil, errors.New(errors.ErrCodeEmptyMerge, "dissolve produced no polygonal parts")
	}
	return out, nil
}

// Area returns the planar area of g as computed by GEOS.
func (e *Engine) Area(g orb.Geometry) float64 {
	gg, err := toGeos(e.ctx, g)
	if err != nil {
		return 0
	}
	return gg.Area()
}

// simplifyTopology runs GEOS topology-preserving simplification.
func (e *Engine) simplifyTopology(g orb.Geometry, tol float64) (orb.Geometry, error) {
	gg, err := toGeos(e.ctx, g)
	if err != nil {
		return nil, err
	}
	out, err := fromGeos(gg.TopologyPreserveSimplify(tol))
	if err != nil {
		return nil, err
	}
	return Polygonal(out), nil
}
