package lod

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geolod/pkg/geometry"
)

// box returns a rectangle in degrees with its south-west corner at (lon, lat).
func box(lon, lat, w, h float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + w, lat}, {lon + w, lat + h}, {lon, lat + h}, {lon, lat},
	}}
}

// circleRing approximates a circle in degrees with n vertices.
func circleRing(lon, lat, r float64, n int) orb.Ring {
	ring := make(orb.Ring, 0, n+1)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{lon + r*math.Cos(a), lat + r*math.Sin(a)})
	}
	return append(ring, ring[0])
}

// kecamatan builds a finest-level feature with a full hierarchy.
func kecamatan(id, prov, kab string, g orb.Geometry) *Feature {
	return &Feature{
		ID:       id,
		Geometry: g,
		Properties: map[string]any{
			AttrProvinceCode:    prov,
			AttrProvinceName:    "PROV " + prov,
			AttrDistrictCode:    kab,
			AttrDistrictName:    "KAB " + kab,
			AttrSubdistrictCode: id,
			AttrSubdistrictName: "KEC " + id,
			"luas":              1.5,
		},
		Level: Kecamatan,
	}
}

func layerOf(features ...*Feature) *Layer {
	return &Layer{Level: Kecamatan, Zoom: DefaultZoom(Kecamatan), Features: features}
}

func assertValid(t *testing.T, l *Layer) {
	t.Helper()
	eng := geometry.NewEngine()
	for _, f := range l.Features {
		if ok, reason := eng.IsValid(f.Geometry); !ok {
			t.Errorf("feature %s invalid: %s", f.ID, reason)
		}
		if geometry.GeodesicArea(f.Geometry) <= 0 {
			t.Errorf("feature %s has no area", f.ID)
		}
	}
}
