package io

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	"github.com/matzehuels/geolod/pkg/lod"
)

// ExportResult describes a written GeoJSON file.
type ExportResult struct {
	Path     string
	Size     int64
	Points   int
	Features int
}

// LevelAttrs returns the hierarchy attributes written for features of
// level l. Kecamatan features additionally keep their pass-through
// attributes.
func LevelAttrs(l lod.AdminLevel) []string {
	switch l {
	case lod.Provinsi:
		return lod.ProvinceKey
	case lod.Kabupaten:
		return lod.DistrictKey
	}
	return lod.HierarchyAttrs
}

// FeatureCollection converts layers into one GeoJSON FeatureCollection.
// Every feature carries admin_level, zoom_min and zoom_max plus the
// attributes of its level; rings follow RFC 7946 orientation.
func FeatureCollection(layers ...*lod.Layer) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range layers {
		for _, f := range l.Features {
			fc.Append(toGeoJSON(f, l))
		}
	}
	return fc
}

func toGeoJSON(f *lod.Feature, l *lod.Layer) *geojson.Feature {
	level, zoom := f.Level, f.Zoom
	if level == "" {
		level = l.Level
	}
	if zoom == (lod.ZoomRange{}) {
		zoom = l.Zoom
	}

	gf := geojson.NewFeature(geometry.Orient(f.Geometry))
	gf.ID = f.ID
	if level == lod.Kecamatan {
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
	} else {
		for _, k := range LevelAttrs(level) {
			if v, ok := f.Properties[k]; ok {
				gf.Properties[k] = v
			}
		}
	}
	gf.Properties[lod.AttrAdminLevel] = string(level)
	gf.Properties[lod.AttrZoomMin] = zoom.Min
	gf.Properties[lod.AttrZoomMax] = zoom.Max
	return gf
}

// WriteLayers encodes layers as one FeatureCollection to w and returns the
// number of bytes written.
func WriteLayers(w io.Writer, layers ...*lod.Layer) (int64, error) {
	for _, l := range layers {
		if !l.Geographic() {
			return 0, errors.New(errors.ErrCodeInvalidInput, "%s layer is in %s; GeoJSON output must be %s", l.Level, l.CRS, lod.GeographicCRS)
		}
	}
	data, err := FeatureCollection(layers...).MarshalJSON()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "encode GeoJSON")
	}
	n, err := w.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}
	return int64(n), nil
}

// ExportLayer writes layer to a GeoJSON file at path.
func ExportLayer(layer *lod.Layer, path string) (*ExportResult, error) {
	return ExportLayers(path, layer)
}

// ExportLayers writes all layers into one GeoJSON file at path. The file is
// written to a temporary sibling first and renamed into place, so readers
// never see a partial file.
func ExportLayers(path string, layers ...*lod.Layer) (*ExportResult, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	size, err := WriteLayers(bw, layers...)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "rename into %s", path)
	}

	res := &ExportResult{Path: path, Size: size}
	for _, l := range layers {
		res.Features += l.Len()
		for _, f := range l.Features {
			res.Points += geometry.CountPoints(f.Geometry)
		}
	}
	return res, nil
}
