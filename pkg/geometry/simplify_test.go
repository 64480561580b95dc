package geometry

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geolod/pkg/errors"
)

func TestSimplifyMonotonic(t *testing.T) {
	in := circle(100, 1, 0.5, 720)
	tolerances := []float64{0.0005, 0.005, 0.01, 0.05, 0.1}

	for _, alg := range []string{AlgorithmTopology, AlgorithmDouglasPeucker, AlgorithmVisvalingam} {
		t.Run(alg, func(t *testing.T) {
			s := NewSimplifier(alg)
			prev := CountPoints(in)
			for _, tol := range tolerances {
				out, err := s.Simplify(in, tol)
				if err != nil {
					t.Fatalf("Simplify(%v) error: %v", tol, err)
				}
				n := CountPoints(out)
				if n > prev {
					t.Errorf("Simplify(%v) points = %d, more than %d at a smaller tolerance", tol, n, prev)
				}
				if n < minRingPoints {
					t.Errorf("Simplify(%v) points = %d, want at least %d", tol, n, minRingPoints)
				}
				if ok, reason := s.Engine.IsValid(out); !ok {
					t.Errorf("Simplify(%v) invalid: %s", tol, reason)
				}
				prev = n
			}
		})
	}
}

func TestSimplifyKeepsMinimumRing(t *testing.T) {
	tri := orb.Polygon{orb.Ring{{0, 0}, {0.001, 0}, {0, 0.001}, {0, 0}}}

	for _, alg := range []string{AlgorithmTopology, AlgorithmDouglasPeucker, AlgorithmVisvalingam} {
		t.Run(alg, func(t *testing.T) {
			out, err := NewSimplifier(alg).Simplify(tri, 1)
			if err != nil {
				t.Fatalf("Simplify() error: %v", err)
			}
			if !ringsLongEnough(out) {
				t.Errorf("Simplify() = %v, ring collapsed", out)
			}
		})
	}
}

func TestSimplifyZeroTolerance(t *testing.T) {
	in := circle(100, 1, 0.5, 90)

	out, err := NewSimplifier("").Simplify(in, 0)
	if err != nil {
		t.Fatalf("Simplify() error: %v", err)
	}
	if !orb.Equal(out, in) {
		t.Error("zero tolerance should return an equal copy")
	}
}

func TestSimplifyPreservesMultiType(t *testing.T) {
	in := orb.MultiPolygon{circle(100, 1, 0.5, 90)}

	out, err := NewSimplifier(AlgorithmTopology).Simplify(in, 0.01)
	if err != nil {
		t.Fatalf("Simplify() error: %v", err)
	}
	if _, ok := out.(orb.MultiPolygon); !ok {
		t.Errorf("Simplify() type = %T, want orb.MultiPolygon", out)
	}
}

func TestSimplifyErrors(t *testing.T) {
	if _, err := NewSimplifier("bogus").Simplify(square(0, 0, 1), 0.1); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("unknown algorithm code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}
	if _, err := NewSimplifier("").Simplify(orb.LineString{{0, 0}, {1, 1}}, 0.1); !errors.Is(err, errors.ErrCodeUnsupportedGeometry) {
		t.Errorf("line input code = %v, want %v", errors.GetCode(err), errors.ErrCodeUnsupportedGeometry)
	}
}
