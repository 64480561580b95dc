package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geolod/pkg/errors"
)

// square returns an axis-aligned square polygon with its lower-left corner
// at (x, y).
func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

// circle returns a polygon approximating a circle with n vertices.
func circle(cx, cy, r float64, n int) orb.Polygon {
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

func TestValidateValidGeometryUnchanged(t *testing.T) {
	in := square(100, 1, 0.5)

	out, err := Validate(in)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !orb.Equal(out, in) {
		t.Errorf("Validate() = %v, want %v", out, in)
	}
}

func TestValidateIdempotent(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"square", square(0, 0, 1)},
		{"bowtie", orb.Polygon{orb.Ring{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}},
		{"open ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}},
		{"overlapping parts", orb.MultiPolygon{square(0, 0, 2), square(1, 1, 2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, err := Validate(tt.geom)
			if err != nil {
				t.Fatalf("Validate() error: %v", err)
			}
			twice, err := Validate(once)
			if err != nil {
				t.Fatalf("Validate(Validate()) error: %v", err)
			}
			if !orb.Equal(once, twice) {
				t.Errorf("Validate(Validate(g)) = %v, want %v", twice, once)
			}
			if ok, reason := NewEngine().IsValid(once); !ok {
				t.Errorf("Validate() result invalid: %s", reason)
			}
		})
	}
}

func TestValidateRepairsBowtie(t *testing.T) {
	bowtie := orb.Polygon{orb.Ring{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}

	eng := NewEngine()
	if ok, _ := eng.IsValid(bowtie); ok {
		t.Fatal("bowtie should be invalid before repair")
	}

	out, err := eng.Validate(bowtie)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got := eng.Area(out); math.Abs(got-2) > 1e-9 {
		t.Errorf("repaired area = %v, want 2", got)
	}
	if NumParts(out) != 2 {
		t.Errorf("repaired parts = %d, want 2", NumParts(out))
	}
}

func TestValidateClosesOpenRing(t *testing.T) {
	open := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}

	out, err := Validate(open)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	p, ok := out.(orb.Polygon)
	if !ok {
		t.Fatalf("Validate() type = %T, want orb.Polygon", out)
	}
	if !p[0].Closed() {
		t.Error("ring should be closed")
	}
	if len(p[0]) != 5 {
		t.Errorf("ring length = %d, want 5", len(p[0]))
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
		code errors.Code
	}{
		{"two point ring", orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {0, 0}}}, errors.ErrCodeGeometryRepair},
		{"collinear ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {2, 0}, {0, 0}}}, errors.ErrCodeGeometryRepair},
		{"empty multipolygon", orb.MultiPolygon{}, errors.ErrCodeGeometryRepair},
		{"point", orb.Point{1, 2}, errors.ErrCodeUnsupportedGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.geom)
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), tt.code)
			}
		})
	}
}

func TestDissolveClosesGaps(t *testing.T) {
	// Three 1 km squares in a metric frame separated by 10 m seams.
	members := []orb.Geometry{
		square(0, 0, 1000),
		square(1010, 0, 1000),
		square(2020, 0, 1000),
	}

	out, err := NewEngine().Dissolve(members, 100)
	if err != nil {
		t.Fatalf("Dissolve() error: %v", err)
	}
	p, ok := out.(orb.Polygon)
	if !ok {
		t.Fatalf("Dissolve() type = %T, want single orb.Polygon", out)
	}
	if len(p) != 1 {
		t.Errorf("holes = %d, want 0", len(p)-1)
	}

	area := PlanarArea(out)
	want := 3020.0 * 1000
	if math.Abs(area-want)/want > 0.01 {
		t.Errorf("area = %.0f, want about %.0f", area, want)
	}
}

func TestDissolveKeepsDistantParts(t *testing.T) {
	members := []orb.Geometry{square(0, 0, 1000), square(50000, 0, 1000)}

	out, err := NewEngine().Dissolve(members, 100)
	if err != nil {
		t.Fatalf("Dissolve() error: %v", err)
	}
	if NumParts(out) != 2 {
		t.Errorf("parts = %d, want 2", NumParts(out))
	}
}

func TestDissolveZeroDistance(t *testing.T) {
	sliver := orb.Polygon{orb.Ring{{0, 0}, {1000, 0}, {1000, 50}, {0, 50}, {0, 0}}}

	out, err := NewEngine().Dissolve([]orb.Geometry{sliver}, 0)
	if err != nil {
		t.Fatalf("Dissolve() error: %v", err)
	}
	if got := PlanarArea(out); math.Abs(got-50000) > 1e-6 {
		t.Errorf("area = %v, want 50000", got)
	}
}

func TestDissolveNoMembers(t *testing.T) {
	_, err := NewEngine().Dissolve(nil, 100)
	if !errors.Is(err, errors.ErrCodeEmptyMerge) {
		t.Errorf("Dissolve(nil) code = %v, want %v", errors.GetCode(err), errors.ErrCodeEmptyMerge)
	}
}

func TestCountPointsAndParts(t *testing.T) {
	mp := orb.MultiPolygon{square(0, 0, 1), square(5, 5, 1)}
	if got := CountPoints(mp); got != 10 {
		t.Errorf("CountPoints() = %d, want 10", got)
	}
	if got := NumParts(mp); got != 2 {
		t.Errorf("NumParts() = %d, want 2", got)
	}
	if got := Polygonal(orb.Collection{square(0, 0, 1), orb.Point{3, 3}}); !orb.Equal(got, square(0, 0, 1)) {
		t.Errorf("Polygonal() = %v, want the square", got)
	}
}

func TestOrient(t *testing.T) {
	cw := orb.Polygon{
		orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
		orb.Ring{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}},
	}

	out := Orient(cw).(orb.Polygon)
	if out[0].Orientation() != orb.CCW {
		t.Error("exterior ring should be counter-clockwise")
	}
	if out[1].Orientation() != orb.CW {
		t.Error("hole should be clockwise")
	}
	if cw[0].Orientation() != orb.CW {
		t.Error("Orient must not modify its input")
	}
}
