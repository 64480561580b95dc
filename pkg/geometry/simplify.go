package geometry

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/matzehuels/geolod/pkg/errors"
)

// Simplification algorithms.
const (
	// AlgorithmTopology is GEOS topology-preserving simplification.
	AlgorithmTopology = "topology"
	// AlgorithmDouglasPeucker is per-ring Douglas-Peucker from orb.
	AlgorithmDouglasPeucker = "douglas-peucker"
	// AlgorithmVisvalingam is per-ring Visvalingam-Whyatt from orb.
	AlgorithmVisvalingam = "visvalingam"
)

// ValidAlgorithms is the set of supported simplification algorithms.
var ValidAlgorithms = map[string]bool{
	AlgorithmTopology:       true,
	AlgorithmDouglasPeucker: true,
	AlgorithmVisvalingam:    true,
}

// Simplifier reduces the vertex count of polygon boundaries.
//
// Tolerance is the maximum perpendicular deviation a removed vertex may
// introduce, in the units of the geometry's frame (degrees for WGS84).
// Every ring keeps at least four positions and the result is always valid.
type Simplifier struct {
	Algorithm string
	Engine    *Engine
	Logger    *log.Logger
}

// NewSimplifier creates a simplifier using the given algorithm and a fresh engine.
// An empty algorithm selects AlgorithmTopology.
func NewSimplifier(algorithm string) *Simplifier {
	if algorithm == "" {
		algorithm = AlgorithmTopology
	}
	return &Simplifier{
		Algorithm: algorithm,
		Engine:    NewEngine(),
		Logger:    log.NewWithOptions(io.Discard, log.Options{}),
	}
}

// Simplify returns a simplified copy of g. A non-positive tolerance returns
// a copy of g unchanged.
func (s *Simplifier) Simplify(g orb.Geometry, tol float64) (orb.Geometry, error) {
	if !IsPolygonal(g) {
		return nil, errors.New(errors.ErrCodeUnsupportedGeometry, "cannot simplify %T", g)
	}
	if tol <= 0 {
		return orb.Clone(g), nil
	}
	if !ValidAlgorithms[s.Algorithm] {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown simplification algorithm %q", s.Algorithm)
	}

	if s.Algorithm != AlgorithmTopology {
		fast := s.simplifyRings(g, tol)
		ok, reason := s.Engine.IsValid(fast)
		if ok {
			return fast, nil
		}
		s.Logger.Debug("fast simplification invalid, using topology-preserving fallback",
			"algorithm", s.Algorithm, "reason", reason)
	}

	out, err := s.Engine.simplifyTopology(g, tol)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "topology-preserving simplify")
	}
	if out == nil || !ringsLongEnough(out) {
		return orb.Clone(g), nil
	}
	if _, single := g.(orb.Polygon); !single {
		if p, ok := out.(orb.Polygon); ok {
			out = orb.MultiPolygon{p}
		}
	}
	return out, nil
}

// simplifyRings applies the orb simplifier ring by ring and keeps the
// original ring whenever the simplified one would collapse.
func (s *Simplifier) simplifyRings(g orb.Geometry, tol float64) orb.Geometry {
	var simp interface {
		Simplify(orb.Geometry) orb.Geometry
	}
	if s.Algorithm == AlgorithmVisvalingam {
		simp = simplify.VisvalingamThreshold(tol * tol)
	} else {
		simp = simplify.DouglasPeucker(tol)
	}

	polys := Polygons(g)
	out := make(orb.MultiPolygon, len(polys))
	for i, p := range polys {
		np := make(orb.Polygon, len(p))
		for j, r := range p {
			ls := orb.LineString(r).Clone()
			res, ok := simp.Simplify(ls).(orb.LineString)
			if !ok || len(res) < minRingPoints {
				np[j] = r.Clone()
				continue
			}
			np[j] = orb.Ring(res)
		}
		out[i] = np
	}
	if _, single := g.(orb.Polygon); single && len(out) == 1 {
		return out[0]
	}
	return out
}

func ringsLongEnough(g orb.Geometry) bool {
	for _, p := range Polygons(g) {
		for _, r := range p {
			if len(r) < minRingPoints {
				return false
			}
		}
	}
	return true
}
