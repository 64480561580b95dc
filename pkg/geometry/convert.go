package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// minRingPoints is the smallest closed ring: three distinct positions plus
// the repeated closing position.
const minRingPoints = 4

// toGeos converts an orb geometry into a GEOS geometry owned by gctx.
func toGeos(gctx *geos.Context, g orb.Geometry) (*geos.Geom, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode wkb: %w", err)
	}
	gg, err := gctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("decode geos: %w", err)
	}
	return gg, nil
}

// fromGeos converts a GEOS geometry back into an orb geometry.
func fromGeos(g *geos.Geom) (orb.Geometry, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decode wkb: %w", err)
	}
	return out, nil
}

// Polygons flattens the polygonal content of g. Non-polygonal members of a
// collection and empty polygons are ignored.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) > 0 && len(g[0]) > 0 {
			return []orb.Polygon{g}
		}
	case orb.MultiPolygon:
		out := make([]orb.Polygon, 0, len(g))
		for _, p := range g {
			if len(p) > 0 && len(p[0]) > 0 {
				out = append(out, p)
			}
		}
		return out
	case orb.Collection:
		var out []orb.Polygon
		for _, m := range g {
			out = append(out, Polygons(m)...)
		}
		return out
	}
	return nil
}

// Polygonal returns the polygonal content of g as an orb.Polygon when it has
// exactly one part, an orb.MultiPolygon when it has several, or nil.
func Polygonal(g orb.Geometry) orb.Geometry {
	polys := Polygons(g)
	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	return orb.MultiPolygon(polys)
}

// IsPolygonal reports whether g is an orb.Polygon or orb.MultiPolygon.
func IsPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

// closeRings returns a copy of g where every ring is explicitly closed and
// rings too short to enclose area are dropped. A polygon whose shell is
// dropped disappears entirely.
func closeRings(g orb.Geometry) orb.Geometry {
	var out []orb.Polygon
	for _, p := range Polygons(g) {
		cp := make(orb.Polygon, 0, len(p))
		for i, r := range p {
			r = closeRing(r)
			if len(r) < minRingPoints {
				if i == 0 {
					break
				}
				continue
			}
			cp = append(cp, r)
		}
		if len(cp) > 0 {
			out = append(out, cp)
		}
	}
	if _, single := g.(orb.Polygon); single && len(out) == 1 {
		return out[0]
	}
	if len(out) == 0 {
		return nil
	}
	return orb.MultiPolygon(out)
}

func closeRing(r orb.Ring) orb.Ring {
	cp := make(orb.Ring, len(r), len(r)+1)
	copy(cp, r)
	if len(cp) > 0 && !cp.Closed() {
		cp = append(cp, cp[0])
	}
	return cp
}

// CountPoints returns the number of positions in all rings of g, closing
// positions included.
func CountPoints(g orb.Geometry) int {
	n := 0
	for _, p := range Polygons(g) {
		for _, r := range p {
			n += len(r)
		}
	}
	return n
}

// NumParts returns the number of polygons in g.
func NumParts(g orb.Geometry) int {
	return len(Polygons(g))
}
