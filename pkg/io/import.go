package io

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	"github.com/matzehuels/geolod/pkg/lod"
)

// ImportResult is a decoded input layer plus the features that were
// rejected while reading it.
type ImportResult struct {
	Layer    *lod.Layer
	Rejected []lod.Failure
	// Size is the number of bytes read.
	Size int64
	// Points is the number of ring positions in the accepted features.
	Points int
}

// ReadLayer decodes a GeoJSON FeatureCollection of kecamatan polygons from r.
//
// Attributes are renamed through mapping. Features that lack required
// attributes are rejected with SCHEMA_MISMATCH, features without polygonal
// geometry with UNSUPPORTED_GEOMETRY; neither aborts the read. A document
// that is not a FeatureCollection, or that declares a CRS other than WGS84,
// yields INVALID_INPUT.
//
// ReadLayer does not close r.
func ReadLayer(r io.Reader, mapping SchemaMapping) (*ImportResult, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read input")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode GeoJSON")
	}
	if err := checkCRS(fc); err != nil {
		return nil, err
	}

	res := &ImportResult{
		Layer: &lod.Layer{Level: lod.Kecamatan, Zoom: lod.DefaultZoom(lod.Kecamatan), CRS: lod.GeographicCRS},
		Size:  int64(len(data)),
	}
	seen := make(map[string]int)
	for i, gf := range fc.Features {
		id := featureID(gf, mapping, i)
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s#%d", id, n+1)
		} else {
			seen[id] = 1
		}

		if gf.Geometry == nil || !geometry.IsPolygonal(gf.Geometry) {
			res.Rejected = append(res.Rejected, lod.Failure{
				Level:   lod.Kecamatan,
				Subject: id,
				Err:     errors.New(errors.ErrCodeUnsupportedGeometry, "feature %d has %s geometry", i, geometryType(gf)),
			})
			continue
		}
		props, err := mapping.Apply(gf.Properties)
		if err != nil {
			res.Rejected = append(res.Rejected, lod.Failure{Level: lod.Kecamatan, Subject: id, Err: err})
			continue
		}

		res.Layer.Features = append(res.Layer.Features, &lod.Feature{
			ID:         id,
			Geometry:   gf.Geometry,
			Properties: props,
			Level:      lod.Kecamatan,
			Zoom:       res.Layer.Zoom,
		})
		res.Points += geometry.CountPoints(gf.Geometry)
	}
	return res, nil
}

// ImportLayer reads a GeoJSON file at path with [ReadLayer]. A missing
// file yields INPUT_MISSING.
func ImportLayer(path string, mapping SchemaMapping) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeInputMissing, err, "input %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadLayer(f, mapping)
}

func featureID(gf *geojson.Feature, mapping SchemaMapping, i int) string {
	if mapping.IDField != "" {
		for _, name := range append([]string{mapping.IDField}, mapping.Fields[mapping.IDField]...) {
			if v := lod.AttrString(gf.Properties[name]); v != "" {
				return v
			}
		}
	}
	if v := lod.AttrString(gf.ID); v != "" {
		return v
	}
	return fmt.Sprintf("feature-%d", i)
}

func geometryType(gf *geojson.Feature) string {
	if gf.Geometry == nil {
		return "no"
	}
	return gf.Geometry.GeoJSONType()
}

// checkCRS rejects the legacy "crs" member when it names anything but WGS84.
func checkCRS(fc *geojson.FeatureCollection) error {
	raw, ok := fc.ExtraMembers["crs"]
	if !ok || raw == nil {
		return nil
	}
	crs, _ := raw.(map[string]any)
	props, _ := crs["properties"].(map[string]any)
	name, _ := props["name"].(string)
	n := strings.ToUpper(name)
	if strings.HasSuffix(n, "CRS84") || strings.HasSuffix(n, "4326") {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "input CRS %q is not WGS84 longitude/latitude", name)
}
