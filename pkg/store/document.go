package store

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/matzehuels/geolod/pkg/lod"
)

// Boundary is one stored polygon of the pyramid.
type Boundary struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	FeatureID  string             `bson:"feature_id"`
	AdminLevel lod.AdminLevel     `bson:"admin_level"`
	ZoomMin    int                `bson:"zoom_min"`
	ZoomMax    int                `bson:"zoom_max"`

	KodeProvinsi  string `bson:"kode_provinsi"`
	NamaProvinsi  string `bson:"nama_provinsi"`
	KodeKabupaten string `bson:"kode_kabupaten,omitempty"`
	NamaKabupaten string `bson:"nama_kabupaten,omitempty"`
	KodeKecamatan string `bson:"kode_kecamatan,omitempty"`
	NamaKecamatan string `bson:"nama_kecamatan,omitempty"`

	Geometry   *geojson.Geometry `bson:"geometry"`
	Properties *Properties       `bson:"properties,omitempty"`
	Sources    int               `bson:"sources,omitempty"`

	Source                  string    `bson:"source"`
	SimplificationTolerance float64   `bson:"simplification_tolerance"`
	ImportID                string    `bson:"import_id"`
	CreatedAt               time.Time `bson:"created_at"`
	UpdatedAt               time.Time `bson:"updated_at"`
}

// Properties holds the statistical attributes carried by subdistricts.
// Merged levels have none.
type Properties struct {
	ObjectID   *float64       `bson:"objectid,omitempty"`
	Population *float64       `bson:"population,omitempty"`
	Households *float64       `bson:"households,omitempty"`
	Area       *float64       `bson:"area,omitempty"`
	Kepadatan  *float64       `bson:"kepadatan,omitempty"`
	Raw        map[string]any `bson:"raw,omitempty"`
}

// statColumns maps source columns to the statistics they fill.
var statColumns = map[string]func(p *Properties, v *float64){
	"objectid":        func(p *Properties, v *float64) { p.ObjectID = v },
	"jumlah_pen":      func(p *Properties, v *float64) { p.Population = v },
	"jumlah_penduduk": func(p *Properties, v *float64) { p.Population = v },
	"jumlah_kk":       func(p *Properties, v *float64) { p.Households = v },
	"luas_wilay":      func(p *Properties, v *float64) { p.Area = v },
	"luas_wilayah":    func(p *Properties, v *float64) { p.Area = v },
	"kepadatan_":      func(p *Properties, v *float64) { p.Kepadatan = v },
	"kepadatan":       func(p *Properties, v *float64) { p.Kepadatan = v },
}

// NewBoundary converts a pyramid feature into its stored form.
func NewBoundary(f *lod.Feature, tolerance float64, source string, importID uuid.UUID, now time.Time) *Boundary {
	b := &Boundary{
		FeatureID:               f.ID,
		AdminLevel:              f.Level,
		ZoomMin:                 f.Zoom.Min,
		ZoomMax:                 f.Zoom.Max,
		KodeProvinsi:            f.Attr(lod.AttrProvinceCode),
		NamaProvinsi:            f.Attr(lod.AttrProvinceName),
		Geometry:                geojson.NewGeometry(f.Geometry),
		Sources:                 len(f.Sources),
		Source:                  source,
		SimplificationTolerance: tolerance,
		ImportID:                importID.String(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if f.Level.Rank() >= lod.Kabupaten.Rank() {
		b.KodeKabupaten = f.Attr(lod.AttrDistrictCode)
		b.NamaKabupaten = f.Attr(lod.AttrDistrictName)
	}
	if f.Level == lod.Kecamatan {
		b.KodeKecamatan = f.Attr(lod.AttrSubdistrictCode)
		b.NamaKecamatan = f.Attr(lod.AttrSubdistrictName)
	}
	b.Properties = statistics(f.Properties)
	return b
}

func statistics(props map[string]any) *Properties {
	p := &Properties{}
	for k, v := range props {
		if isHierarchy(k) {
			continue
		}
		if set, ok := statColumns[k]; ok {
			if n, ok := number(v); ok {
				set(p, &n)
			}
		}
		if p.Raw == nil {
			p.Raw = make(map[string]any)
		}
		p.Raw[k] = v
	}
	if p.Raw == nil {
		return nil
	}
	return p
}

func isHierarchy(k string) bool {
	for _, a := range lod.HierarchyAttrs {
		if k == a {
			return true
		}
	}
	return k == lod.AttrAdminLevel || k == lod.AttrZoomMin || k == lod.AttrZoomMax
}

func number(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

// Feature converts the stored boundary back into a pyramid feature.
func (b *Boundary) Feature() *lod.Feature {
	f := &lod.Feature{
		ID:    b.FeatureID,
		Level: b.AdminLevel,
		Zoom:  lod.ZoomRange{Min: b.ZoomMin, Max: b.ZoomMax},
		Properties: map[string]any{
			lod.AttrProvinceCode: b.KodeProvinsi,
			lod.AttrProvinceName: b.NamaProvinsi,
		},
	}
	if b.Geometry != nil {
		f.Geometry = b.Geometry.Geometry()
	}
	if b.KodeKabupaten != "" {
		f.Properties[lod.AttrDistrictCode] = b.KodeKabupaten
		f.Properties[lod.AttrDistrictName] = b.NamaKabupaten
	}
	if b.KodeKecamatan != "" {
		f.Properties[lod.AttrSubdistrictCode] = b.KodeKecamatan
		f.Properties[lod.AttrSubdistrictName] = b.NamaKecamatan
	}
	if b.Properties != nil {
		for k, v := range b.Properties.Raw {
			f.Properties[k] = v
		}
	}
	return f
}
