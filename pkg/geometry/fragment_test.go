package geometry

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestFilterFragments(t *testing.T) {
	mainland := square(100, 0, 1)
	islet := square(102, 0, 0.03)
	island := square(104, 0, 0.5)

	tests := []struct {
		name      string
		geom      orb.Geometry
		threshold float64
		wantParts int
		wantType  string
	}{
		{"single polygon untouched", mainland, DefaultFragmentThreshold, 1, "Polygon"},
		{"islet dropped", orb.MultiPolygon{mainland, islet}, DefaultFragmentThreshold, 1, "Polygon"},
		{"islands kept", orb.MultiPolygon{mainland, island, islet}, DefaultFragmentThreshold, 2, "MultiPolygon"},
		{"filter disabled", orb.MultiPolygon{mainland, islet}, 0, 2, "MultiPolygon"},
		{"largest survives", orb.MultiPolygon{island, mainland, islet}, 0.9, 1, "Polygon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterFragments(tt.geom, tt.threshold, nil)
			if got := NumParts(out); got != tt.wantParts {
				t.Errorf("parts = %d, want %d", got, tt.wantParts)
			}
			if got := out.GeoJSONType(); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func TestFilterFragmentsKeepsLargest(t *testing.T) {
	out := FilterFragments(orb.MultiPolygon{square(104, 0, 0.5), square(100, 0, 1)}, 0.9, nil)
	if !orb.Equal(out, square(100, 0, 1)) {
		t.Errorf("FilterFragments() = %v, want the largest part", out)
	}
}

func TestFilterFragmentsRetention(t *testing.T) {
	parts := orb.MultiPolygon{
		square(100, 0, 1),
		square(102, 0, 0.2),
		square(103, 0, 0.05),
		square(104, 0, 0.01),
	}
	total := GeodesicArea(parts)

	for _, threshold := range []float64{0.001, 0.005, 0.01, 0.05} {
		out := FilterFragments(parts, threshold, GeodesicArea)
		if kept := GeodesicArea(out); kept < (1-threshold*float64(len(parts)))*total {
			t.Errorf("threshold %v kept %.3g of %.3g", threshold, kept, total)
		}
	}
}

func TestPlanarArea(t *testing.T) {
	cw := orb.Polygon{orb.Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}}
	if got := PlanarArea(cw); got != 4 {
		t.Errorf("PlanarArea() = %v, want 4", got)
	}
}
