package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/lod"
)

const bnpbSample = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {
        "nama_prop": "ACEH", "kode_prop_": 11,
        "nama_kab": "SIMEULUE", "kode_kab_s": 1101,
        "nama_kec": "TEUPAH SELATAN", "kode_kec_s": 1101010,
        "jumlah_pen": 20000
      },
      "geometry": {"type": "Polygon", "coordinates": [[[96,2],[96.1,2],[96.1,2.1],[96,2.1],[96,2]]]}
    },
    {
      "type": "Feature",
      "properties": {
        "nama_prop": "ACEH", "kode_prop_": "11",
        "nama_kab": "SIMEULUE", "kode_kab_s": "1101",
        "nama_kec": "SIMEULUE TIMUR", "kode_kec_s": "1101020"
      },
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[96.1,2],[96.2,2],[96.2,2.1],[96.1,2.1],[96.1,2]]]]}
    },
    {
      "type": "Feature",
      "properties": {"nama_prop": "ACEH", "kode_prop_": 11, "nama_kec": "NO DISTRICT", "kode_kec_s": 1101030},
      "geometry": {"type": "Polygon", "coordinates": [[[96.2,2],[96.3,2],[96.3,2.1],[96.2,2.1],[96.2,2]]]}
    },
    {
      "type": "Feature",
      "properties": {
        "nama_prop": "ACEH", "kode_prop_": 11,
        "nama_kab": "SIMEULUE", "kode_kab_s": 1101,
        "nama_kec": "A POINT", "kode_kec_s": 1101040
      },
      "geometry": {"type": "Point", "coordinates": [96, 2]}
    }
  ]
}`

func TestReadLayer(t *testing.T) {
	res, err := ReadLayer(strings.NewReader(bnpbSample), DefaultMapping())
	if err != nil {
		t.Fatalf("ReadLayer() error: %v", err)
	}

	if res.Layer.Len() != 2 {
		t.Fatalf("features = %d, want 2", res.Layer.Len())
	}
	if len(res.Rejected) != 2 {
		t.Fatalf("rejected = %d, want 2", len(res.Rejected))
	}
	if !errors.Is(res.Rejected[0].Err, errors.ErrCodeSchemaMismatch) {
		t.Errorf("rejected[0] code = %v, want %v", res.Rejected[0].Code(), errors.ErrCodeSchemaMismatch)
	}
	if !errors.Is(res.Rejected[1].Err, errors.ErrCodeUnsupportedGeometry) {
		t.Errorf("rejected[1] code = %v, want %v", res.Rejected[1].Code(), errors.ErrCodeUnsupportedGeometry)
	}

	f := res.Layer.Features[0]
	if f.ID != "1101010" {
		t.Errorf("ID = %q, want %q", f.ID, "1101010")
	}
	tests := []struct {
		attr string
		want any
	}{
		{lod.AttrProvinceCode, "11"},
		{lod.AttrProvinceName, "ACEH"},
		{lod.AttrDistrictCode, "1101"},
		{lod.AttrSubdistrictName, "TEUPAH SELATAN"},
		{"jumlah_pen", 20000.0},
	}
	for _, tt := range tests {
		if got := f.Properties[tt.attr]; got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.attr, got, tt.want)
		}
	}
	if _, ok := f.Properties["nama_prop"]; ok {
		t.Error("source attribute nama_prop should be renamed")
	}
	if f.Level != lod.Kecamatan || f.Zoom != lod.DefaultZoom(lod.Kecamatan) {
		t.Errorf("level/zoom = %s %v", f.Level, f.Zoom)
	}
	if res.Layer.CRS != lod.GeographicCRS {
		t.Errorf("CRS = %q, want %q", res.Layer.CRS, lod.GeographicCRS)
	}

	// Numeric and string codes of the same district group together.
	groups, _ := lod.GroupBy(res.Layer.Features, lod.DistrictKey)
	if len(groups) != 1 {
		t.Errorf("district groups = %d, want 1", len(groups))
	}
	if res.Size != int64(len(bnpbSample)) || res.Points != 10 {
		t.Errorf("size = %d, points = %d", res.Size, res.Points)
	}
}

func TestReadLayerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.Code
	}{
		{"not json", "nope", errors.ErrCodeInvalidInput},
		{"not a collection", `{"type":"Point","coordinates":[1,2]}`, errors.ErrCodeInvalidInput},
		{"projected crs", `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::32647"}},"features":[]}`, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLayer(strings.NewReader(tt.input), DefaultMapping())
			if !errors.Is(err, tt.code) {
				t.Errorf("code = %v, want %v (err %v)", errors.GetCode(err), tt.code, err)
			}
		})
	}

	ok := `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}},"features":[]}`
	if _, err := ReadLayer(strings.NewReader(ok), DefaultMapping()); err != nil {
		t.Errorf("CRS84 input rejected: %v", err)
	}
}

func TestImportLayerMissingFile(t *testing.T) {
	_, err := ImportLayer(filepath.Join(t.TempDir(), "bnpb.geojson"), DefaultMapping())
	if !errors.Is(err, errors.ErrCodeInputMissing) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInputMissing)
	}
}

func TestReadLayerDuplicateIDs(t *testing.T) {
	input := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"kode_kec_s":"1"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
	  {"type":"Feature","properties":{"kode_kec_s":"1"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`
	m := DefaultMapping()
	m.Required = nil

	res, err := ReadLayer(strings.NewReader(input), m)
	if err != nil {
		t.Fatalf("ReadLayer() error: %v", err)
	}
	ids := res.Layer.IDs()
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "1#2" {
		t.Errorf("IDs = %v, want [1 1#2]", ids)
	}
}

func TestSchemaMappingValidate(t *testing.T) {
	if err := DefaultMapping().Validate(); err != nil {
		t.Errorf("DefaultMapping().Validate() error: %v", err)
	}

	dup := DefaultMapping()
	dup.Fields[lod.AttrDistrictName] = []string{"nama_prop"}
	if err := dup.Validate(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("duplicate source code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}

	bad := DefaultMapping()
	bad.Fields["nama provinsi"] = nil
	if err := bad.Validate(); err == nil {
		t.Error("attribute name with a space should be rejected")
	}
}

func TestSchemaMappingPrefersCanonical(t *testing.T) {
	out, err := DefaultMapping().Apply(map[string]any{
		lod.AttrProvinceName: "ACEH",
		"nama_prop":          "OLD",
		"kode_prop_":         11.0,
		"nama_kab":           "SIMEULUE",
		"kode_kab_s":         1101.0,
		"nama_kec":           "X",
		"kode_kec_s":         1101010.0,
	})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if out[lod.AttrProvinceName] != "ACEH" {
		t.Errorf("nama_provinsi = %v, want ACEH", out[lod.AttrProvinceName])
	}
	if out[lod.AttrSubdistrictCode] != "1101010" {
		t.Errorf("kode_kecamatan = %#v, want \"1101010\"", out[lod.AttrSubdistrictCode])
	}
}

func levelLayers() []*lod.Layer {
	square := orb.Polygon{orb.Ring{{96, 2}, {96, 2.1}, {96.1, 2.1}, {96.1, 2}, {96, 2}}}
	props := map[string]any{
		lod.AttrProvinceCode:    "11",
		lod.AttrProvinceName:    "ACEH",
		lod.AttrDistrictCode:    "1101",
		lod.AttrDistrictName:    "SIMEULUE",
		lod.AttrSubdistrictCode: "1101010",
		lod.AttrSubdistrictName: "TEUPAH SELATAN",
		"jumlah_pen":            20000.0,
	}
	var layers []*lod.Layer
	for _, level := range []lod.AdminLevel{lod.Provinsi, lod.Kabupaten, lod.Kecamatan} {
		layers = append(layers, &lod.Layer{
			Level: level,
			Zoom:  lod.DefaultZoom(level),
			Features: []*lod.Feature{{
				ID:         string(level),
				Geometry:   square,
				Properties: props,
				Level:      level,
				Zoom:       lod.DefaultZoom(level),
			}},
		})
	}
	return layers
}

func TestFeatureCollectionAttributes(t *testing.T) {
	fc := FeatureCollection(levelLayers()...)
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(fc.Features))
	}

	tests := []struct {
		level   string
		zoomMin int
		zoomMax int
		has     []string
		missing []string
	}{
		{"provinsi", 1, 6, []string{lod.AttrProvinceName}, []string{lod.AttrDistrictName, "jumlah_pen"}},
		{"kabupaten", 7, 10, []string{lod.AttrDistrictCode}, []string{lod.AttrSubdistrictName, "jumlah_pen"}},
		{"kecamatan", 11, 22, []string{lod.AttrSubdistrictName, "jumlah_pen"}, nil},
	}
	for i, tt := range tests {
		p := fc.Features[i].Properties
		if p[lod.AttrAdminLevel] != tt.level {
			t.Errorf("feature %d admin_level = %v, want %s", i, p[lod.AttrAdminLevel], tt.level)
		}
		if p[lod.AttrZoomMin] != tt.zoomMin || p[lod.AttrZoomMax] != tt.zoomMax {
			t.Errorf("%s zoom = [%v,%v], want [%d,%d]", tt.level, p[lod.AttrZoomMin], p[lod.AttrZoomMax], tt.zoomMin, tt.zoomMax)
		}
		for _, k := range tt.has {
			if _, ok := p[k]; !ok {
				t.Errorf("%s feature missing %s", tt.level, k)
			}
		}
		for _, k := range tt.missing {
			if _, ok := p[k]; ok {
				t.Errorf("%s feature should not carry %s", tt.level, k)
			}
		}
	}

	// The input ring is clockwise; output exterior rings are counter-clockwise.
	ring := fc.Features[0].Geometry.(orb.Polygon)[0]
	if ring.Orientation() != orb.CCW {
		t.Error("exterior ring should be counter-clockwise")
	}
}

func TestExportLayersRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combined.geojson")

	res, err := ExportLayers(path, levelLayers()...)
	if err != nil {
		t.Fatalf("ExportLayers() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if res.Size != info.Size() {
		t.Errorf("Size = %d, file has %d bytes", res.Size, info.Size())
	}
	if res.Features != 3 || res.Points != 15 {
		t.Errorf("features = %d, points = %d, want 3 and 15", res.Features, res.Points)
	}

	data, _ := os.ReadFile(path)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("written file is not GeoJSON: %v", err)
	}
	if len(fc.Features) != 3 {
		t.Errorf("decoded features = %d, want 3", len(fc.Features))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, temporary file left behind", len(entries))
	}
}

func TestWriteLayers(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteLayers(&buf, levelLayers()[0])
	if err != nil {
		t.Fatalf("WriteLayers() error: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("n = %d, buffer has %d", n, buf.Len())
	}
	if !strings.Contains(buf.String(), `"admin_level":"provinsi"`) {
		t.Errorf("output missing admin_level: %s", buf.String())
	}
}

func TestWriteLayersRejectsMetricLayer(t *testing.T) {
	metric := *levelLayers()[0]
	metric.CRS = "EPSG:32647"

	var buf bytes.Buffer
	_, err := WriteLayers(&buf, &metric)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for a rejected layer", buf.Len())
	}
}

func TestImportLevelsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	layers := levelLayers()
	combined := filepath.Join(dir, "all.geojson")
	if _, err := ExportLayers(combined, layers[0], layers[1]); err != nil {
		t.Fatalf("ExportLayers() error: %v", err)
	}
	kec := filepath.Join(dir, "kecamatan.geojson")
	if _, err := ExportLayer(layers[2], kec); err != nil {
		t.Fatalf("ExportLayer() error: %v", err)
	}

	got, err := ImportLevels(combined, kec)
	if err != nil {
		t.Fatalf("ImportLevels() error: %v", err)
	}
	want := []lod.AdminLevel{lod.Kecamatan, lod.Kabupaten, lod.Provinsi}
	if len(got) != len(want) {
		t.Fatalf("layers = %d, want %d", len(got), len(want))
	}
	for i, l := range got {
		if l.Level != want[i] {
			t.Errorf("layer %d level = %s, want %s", i, l.Level, want[i])
		}
		if l.Zoom != lod.DefaultZoom(l.Level) {
			t.Errorf("%s zoom = %v, want %v", l.Level, l.Zoom, lod.DefaultZoom(l.Level))
		}
		f := l.Features[0]
		if f.ID != string(l.Level) {
			t.Errorf("%s feature ID = %q", l.Level, f.ID)
		}
		if _, ok := f.Properties[lod.AttrAdminLevel]; ok {
			t.Errorf("%s feature still carries admin_level", l.Level)
		}
		if f.Attr(lod.AttrProvinceCode) != "11" {
			t.Errorf("%s kode_provinsi = %q, want 11", l.Level, f.Attr(lod.AttrProvinceCode))
		}
	}
}

func TestReadLevelsRejectsUnknownLevel(t *testing.T) {
	input := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"admin_level":"desa"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`
	if _, err := ReadLevels(strings.NewReader(input)); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}
}
