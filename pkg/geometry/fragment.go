package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// DefaultFragmentThreshold is the reference policy: parts smaller than 0.5%
// of the feature's total area are dropped at the coarsest level.
const DefaultFragmentThreshold = 0.005

// AreaFunc measures the area of a polygonal geometry.
type AreaFunc func(orb.Geometry) float64

// GeodesicArea measures WGS84 geometries in square metres on the sphere.
func GeodesicArea(g orb.Geometry) float64 { return geo.Area(g) }

// PlanarArea measures geometries in a projected frame in square frame units.
func PlanarArea(g orb.Geometry) float64 {
	a := planar.Area(g)
	if a < 0 {
		return -a
	}
	return a
}

// FilterFragments drops insignificant parts of a multipolygon.
//
// Single polygons are returned unchanged. For a multipolygon every part
// whose share of the total area is at least threshold is kept; if no part
// qualifies the largest part is kept instead, so the result is never empty.
// A single surviving part is returned as an orb.Polygon. A nil area
// function selects GeodesicArea. A threshold of zero or less disables
// filtering.
func FilterFragments(g orb.Geometry, threshold float64, area AreaFunc) orb.Geometry {
	mp, ok := g.(orb.MultiPolygon)
	if !ok || threshold <= 0 || len(mp) == 0 {
		return g
	}
	if area == nil {
		area = GeodesicArea
	}

	areas := make([]float64, len(mp))
	total := 0.0
	largest := 0
	for i, p := range mp {
		areas[i] = area(p)
		total += areas[i]
		if areas[i] > areas[largest] {
			largest = i
		}
	}
	if total <= 0 {
		return mp[largest]
	}

	kept := make(orb.MultiPolygon, 0, len(mp))
	for i, p := range mp {
		if areas[i]/total >= threshold {
			kept = append(kept, p)
		}
	}

	switch len(kept) {
	case 0:
		return mp[largest]
	case 1:
		return kept[0]
	}
	return kept
}
