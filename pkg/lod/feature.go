package lod

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geolod/pkg/errors"
)

// AdminLevel is one tier of the administrative hierarchy.
type AdminLevel string

// Administrative levels, finest first.
const (
	Kecamatan AdminLevel = "kecamatan"
	Kabupaten AdminLevel = "kabupaten"
	Provinsi  AdminLevel = "provinsi"
)

// Levels lists the administrative levels in build order.
var Levels = []AdminLevel{Kecamatan, Kabupaten, Provinsi}

// Rank returns 3 for kecamatan, 2 for kabupaten, 1 for provinsi and 0 for
// unknown levels.
func (l AdminLevel) Rank() int {
	switch l {
	case Kecamatan:
		return 3
	case Kabupaten:
		return 2
	case Provinsi:
		return 1
	}
	return 0
}

// Coarser returns the next coarser level, or "" for provinsi.
func (l AdminLevel) Coarser() AdminLevel {
	switch l {
	case Kecamatan:
		return Kabupaten
	case Kabupaten:
		return Provinsi
	}
	return ""
}

// Valid reports whether l is a known level.
func (l AdminLevel) Valid() bool { return l.Rank() > 0 }

func (l AdminLevel) String() string { return string(l) }

// ParseAdminLevel parses a level name.
func ParseAdminLevel(s string) (AdminLevel, error) {
	l := AdminLevel(s)
	if !l.Valid() {
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown admin level %q (want kecamatan, kabupaten or provinsi)", s)
	}
	return l, nil
}

// ZoomRange is the inclusive range of map zoom levels at which a level is
// displayed.
type ZoomRange struct {
	Min int `toml:"zoom_min" json:"zoom_min"`
	Max int `toml:"zoom_max" json:"zoom_max"`
}

// DefaultZoom returns the reference zoom range of a level.
func DefaultZoom(l AdminLevel) ZoomRange {
	switch l {
	case Kecamatan:
		return ZoomRange{Min: 11, Max: 22}
	case Kabupaten:
		return ZoomRange{Min: 7, Max: 10}
	case Provinsi:
		return ZoomRange{Min: 1, Max: 6}
	}
	return ZoomRange{}
}

// Contains reports whether zoom lies in the range.
func (z ZoomRange) Contains(zoom int) bool { return zoom >= z.Min && zoom <= z.Max }

func (z ZoomRange) String() string { return fmt.Sprintf("[%d,%d]", z.Min, z.Max) }

// Canonical attribute names.
const (
	AttrProvinceCode    = "kode_provinsi"
	AttrProvinceName    = "nama_provinsi"
	AttrDistrictCode    = "kode_kabupaten"
	AttrDistrictName    = "nama_kabupaten"
	AttrSubdistrictCode = "kode_kecamatan"
	AttrSubdistrictName = "nama_kecamatan"

	AttrAdminLevel = "admin_level"
	AttrZoomMin    = "zoom_min"
	AttrZoomMax    = "zoom_max"
)

// HierarchyAttrs lists the canonical hierarchy attributes, coarsest first.
var HierarchyAttrs = []string{
	AttrProvinceCode, AttrProvinceName,
	AttrDistrictCode, AttrDistrictName,
	AttrSubdistrictCode, AttrSubdistrictName,
}

// GeographicCRS is the frame of every layer the pipeline reads or emits.
const GeographicCRS = "EPSG:4326"

// Feature is one polygonal administrative region.
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Properties map[string]any
	Level      AdminLevel
	Zoom       ZoomRange

	// Sources holds the IDs of the finer features this one was merged from.
	Sources []string
}

// Attr returns the named property as a string. Numbers are formatted without
// a trailing fraction; missing properties return "".
func (f *Feature) Attr(name string) string {
	return AttrString(f.Properties[name])
}

// AttrString formats an attribute value the way hierarchy keys compare it.
func AttrString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return fmt.Sprint(v)
}

// Clone returns a deep copy of f.
func (f *Feature) Clone() *Feature {
	var g orb.Geometry
	if f.Geometry != nil {
		g = orb.Clone(f.Geometry)
	}
	return f.withGeometry(g)
}

// withGeometry returns a copy of f carrying g. Properties and sources are
// copied, the original geometry is not.
func (f *Feature) withGeometry(g orb.Geometry) *Feature {
	out := &Feature{
		ID:       f.ID,
		Geometry: g,
		Level:    f.Level,
		Zoom:     f.Zoom,
	}
	if f.Properties != nil {
		out.Properties = make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			out.Properties[k] = v
		}
	}
	if f.Sources != nil {
		out.Sources = append([]string(nil), f.Sources...)
	}
	return out
}

// Layer is an ordered set of features sharing one level, zoom range and
// frame. Layers produced by this package are never modified afterwards.
type Layer struct {
	Level AdminLevel
	Zoom  ZoomRange
	// CRS names the frame of the feature coordinates. Empty means
	// GeographicCRS.
	CRS      string
	Features []*Feature
}

// Geographic reports whether the layer is in WGS84 longitude/latitude.
func (l *Layer) Geographic() bool {
	return l == nil || l.CRS == "" || l.CRS == GeographicCRS
}

// checkGeographic returns INVALID_INPUT for layers in any other frame.
func checkGeographic(l *Layer) error {
	if l.Geographic() {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "%s layer is in %s, want %s", l.Level, l.CRS, GeographicCRS)
}

// Len returns the number of features.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Bound returns the extent of all feature geometries.
func (l *Layer) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range l.Features {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if first {
			b, first = fb, false
			continue
		}
		b = b.Union(fb)
	}
	return b
}

// IDs returns the feature IDs in order.
func (l *Layer) IDs() []string {
	ids := make([]string, len(l.Features))
	for i, f := range l.Features {
		ids[i] = f.ID
	}
	return ids
}
