// Package geometry provides the polygon operations behind the LOD pipeline.
//
// Geometries are modelled with [github.com/paulmach/orb] types
// (orb.Polygon and orb.MultiPolygon). Topology work (validity repair,
// buffering, union, topology-preserving simplification) is delegated to GEOS
// through [github.com/twpayne/go-geos]; geometries cross between the two
// worlds as WKB.
//
// # Engines
//
// GEOS operations run inside an [Engine], which owns one GEOS context.
// An Engine serializes its own calls, so concurrent callers that want real
// parallelism should each create their own:
//
//	eng := geometry.NewEngine()
//	valid, err := eng.Validate(poly)
//
// The package-level [Validate] uses a pooled engine.
//
// # Frames
//
// [Projector] converts between WGS84 longitude/latitude and a UTM zone with
// PROJ so that buffer distances are expressed in metres:
//
//	frame := geometry.SelectFrame(layerBounds)
//	p := geometry.NewProjector(frame)
//	defer p.Close()
//	metric, err := p.ToMetric(poly)
//
// # Simplification and fragments
//
// [Simplifier] reduces vertex counts without breaking validity and
// [FilterFragments] drops insignificant parts of a multipolygon.
package geometry
