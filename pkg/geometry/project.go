package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-proj/v10"

	"github.com/matzehuels/geolod/pkg/errors"
)

const (
	// geographicCRS is the CRS of every input and output layer. PROJ uses
	// the EPSG axis order for it: latitude first.
	geographicCRS = "EPSG:4326"

	// MinLatitude and MaxLatitude bound the UTM domain.
	MinLatitude = -80.0
	MaxLatitude = 84.0

	// DefaultMaxZoneOffset is the largest longitude distance from the
	// central meridian accepted by ToMetric. Scale error grows with the
	// offset (about 2% at 12°), so buffer distances near the limit are
	// only approximately metres.
	DefaultMaxZoneOffset = 12.0
)

// Frame identifies a UTM zone on the WGS84 datum.
type Frame struct {
	Zone  int  `toml:"zone" json:"zone"`
	South bool `toml:"south" json:"south"`
}

// ReferenceFrame is UTM zone 47N, the fixed frame of the reference dataset.
var ReferenceFrame = Frame{Zone: 47}

// EPSG returns the EPSG code of the frame (326zz north, 327zz south).
func (f Frame) EPSG() int {
	if f.South {
		return 32700 + f.Zone
	}
	return 32600 + f.Zone
}

// String returns a short name like "UTM 47N".
func (f Frame) String() string {
	hemi := "N"
	if f.South {
		hemi = "S"
	}
	return fmt.Sprintf("UTM %d%s", f.Zone, hemi)
}

// CentralMeridian returns the central meridian of the zone in degrees.
func (f Frame) CentralMeridian() float64 {
	return float64(f.Zone-1)*6 - 180 + 3
}

// Valid reports whether the zone number is in range.
func (f Frame) Valid() bool {
	return f.Zone >= 1 && f.Zone <= 60
}

// ParseFrame parses "EPSG:32647", "32647", "utm:47N", "47N" or "47s".
func ParseFrame(s string) (Frame, error) {
	orig := s
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "EPSG:")
	s = strings.TrimPrefix(s, "UTM:")
	s = strings.TrimPrefix(s, "UTM ")

	if code, err := strconv.Atoi(s); err == nil {
		switch {
		case code > 32600 && code <= 32660:
			return Frame{Zone: code - 32600}, nil
		case code > 32700 && code <= 32760:
			return Frame{Zone: code - 32700, South: true}, nil
		}
		return Frame{}, errors.New(errors.ErrCodeInvalidConfig, "unsupported EPSG code %q (want 326zz or 327zz)", orig)
	}

	if len(s) < 2 {
		return Frame{}, errors.New(errors.ErrCodeInvalidConfig, "invalid frame %q", orig)
	}
	hemi := s[len(s)-1]
	zone, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || (hemi != 'N' && hemi != 'S') {
		return Frame{}, errors.New(errors.ErrCodeInvalidConfig, "invalid frame %q", orig)
	}
	f := Frame{Zone: zone, South: hemi == 'S'}
	if !f.Valid() {
		return Frame{}, errors.New(errors.ErrCodeInvalidConfig, "UTM zone out of range in %q", orig)
	}
	return f, nil
}

// SelectFrame returns the UTM zone whose central meridian is nearest to the
// centre of b. The hemisphere follows the centre latitude.
func SelectFrame(b orb.Bound) Frame {
	c := b.Center()
	zone := int(math.Floor((c.Lon()+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return Frame{Zone: zone, South: c.Lat() < 0}
}

// Projector converts geometries between WGS84 and one UTM frame using PROJ.
// A Projector holds a PROJ transformation and must not be shared between
// goroutines. Construct with NewProjector and release with Close.
type Projector struct {
	frame     Frame
	maxOffset float64
	pj        *proj.PJ
}

// NewProjector returns a projector for frame. The PROJ transformation is
// created on first use.
func NewProjector(frame Frame) *Projector {
	return &Projector{
		frame:     frame,
		maxOffset: DefaultMaxZoneOffset,
	}
}

// WithMaxZoneOffset overrides the accepted longitude distance from the
// central meridian and returns p. Non-positive values are ignored.
func (p *Projector) WithMaxZoneOffset(deg float64) *Projector {
	if deg > 0 {
		p.maxOffset = deg
	}
	return p
}

// Frame returns the metric frame of p.
func (p *Projector) Frame() Frame { return p.frame }

// Close releases the PROJ transformation. It is safe to call more than once.
func (p *Projector) Close() {
	if p.pj != nil {
		p.pj.Destroy()
		p.pj = nil
	}
}

func (p *Projector) transform() (*proj.PJ, error) {
	if p.pj != nil {
		return p.pj, nil
	}
	if !p.frame.Valid() {
		return nil, errors.New(errors.ErrCodeProjection, "invalid frame %v", p.frame)
	}
	pj, err := proj.NewContext().NewCRSToCRS(geographicCRS, fmt.Sprintf("EPSG:%d", p.frame.EPSG()), nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "create transformation to %v", p.frame)
	}
	p.pj = pj
	return pj, nil
}

// ToMetric projects a WGS84 geometry into the projector's UTM frame.
// The input is not modified. Positions outside the projection domain yield
// an error with code PROJECTION_FAILED.
func (p *Projector) ToMetric(g orb.Geometry) (orb.Geometry, error) {
	pj, err := p.transform()
	if err != nil {
		return nil, err
	}
	cm := p.frame.CentralMeridian()
	if err := eachPoint(g, func(pt orb.Point) error {
		lon, lat := pt.Lon(), pt.Lat()
		if !finite(lon) || !finite(lat) {
			return fmt.Errorf("non-finite coordinate %v", pt)
		}
		if lat < MinLatitude || lat > MaxLatitude {
			return fmt.Errorf("latitude %.6f outside UTM domain [%g, %g]", lat, MinLatitude, MaxLatitude)
		}
		if d := math.Abs(lonDelta(lon, cm)); d > p.maxOffset {
			return fmt.Errorf("longitude %.6f is %.1f° from central meridian of %v (max %.1f°)", lon, d, p.frame, p.maxOffset)
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "project to %v", p.frame)
	}

	out, err := mapRings(g, func(r orb.Ring) (orb.Ring, error) {
		if len(r) == 0 {
			return orb.Ring{}, nil
		}
		coords := make([]proj.Coord, len(r))
		for i, pt := range r {
			coords[i] = proj.Coord{pt.Lat(), pt.Lon(), 0, 0}
		}
		if err := pj.ForwardArray(coords); err != nil {
			return nil, err
		}
		ring := make(orb.Ring, len(coords))
		for i, c := range coords {
			ring[i] = orb.Point{c[0], c[1]}
		}
		return ring, nil
	})
	if errors.GetCode(err) != "" {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "project to %v", p.frame)
	}
	return out, nil
}

// ToGeographic projects a geometry in the projector's UTM frame back to
// WGS84 longitude/latitude. The input is not modified.
func (p *Projector) ToGeographic(g orb.Geometry) (orb.Geometry, error) {
	pj, err := p.transform()
	if err != nil {
		return nil, err
	}
	if err := eachPoint(g, func(pt orb.Point) error {
		if !finite(pt[0]) || !finite(pt[1]) {
			return fmt.Errorf("non-finite coordinate %v", pt)
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "unproject from %v", p.frame)
	}

	out, err := mapRings(g, func(r orb.Ring) (orb.Ring, error) {
		if len(r) == 0 {
			return orb.Ring{}, nil
		}
		coords := make([]proj.Coord, len(r))
		for i, pt := range r {
			coords[i] = proj.Coord{pt[0], pt[1], 0, 0}
		}
		if err := pj.InverseArray(coords); err != nil {
			return nil, err
		}
		ring := make(orb.Ring, len(coords))
		for i, c := range coords {
			if !finite(c[0]) || !finite(c[1]) {
				return nil, fmt.Errorf("position %v has no geographic equivalent", r[i])
			}
			ring[i] = orb.Point{c[1], c[0]}
		}
		return ring, nil
	})
	if errors.GetCode(err) != "" {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "unproject from %v", p.frame)
	}
	return out, nil
}

// mapRings returns a copy of a polygonal geometry with fn applied to every
// ring. Polygons stay polygons and multipolygons stay multipolygons.
func mapRings(g orb.Geometry, fn func(orb.Ring) (orb.Ring, error)) (orb.Geometry, error) {
	polygon := func(p orb.Polygon) (orb.Polygon, error) {
		out := make(orb.Polygon, len(p))
		for i, r := range p {
			nr, err := fn(r)
			if err != nil {
				return nil, err
			}
			out[i] = nr
		}
		return out, nil
	}

	switch g := g.(type) {
	case orb.Collection:
		return mapRings(Polygonal(g), fn)
	case orb.Polygon:
		return polygon(g)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			np, err := polygon(p)
			if err != nil {
				return nil, err
			}
			out[i] = np
		}
		return out, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupportedGeometry, "cannot project %T", g)
}

// lonDelta returns lon - cm normalized to [-180, 180).
func lonDelta(lon, cm float64) float64 {
	return math.Mod(lon-cm+540, 360) - 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// eachPoint calls fn for every ring position of a polygonal geometry and
// stops at the first error.
func eachPoint(g orb.Geometry, fn func(orb.Point) error) error {
	for _, p := range Polygons(g) {
		for _, r := range p {
			for _, pt := range r {
				if err := fn(pt); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
