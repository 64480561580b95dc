package io

import (
	"io"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	"github.com/matzehuels/geolod/pkg/lod"
)

// ReadLevels decodes a file written by [ExportLayer] or [ExportLayers] back
// into layers, finest level first. Features are assigned to layers by their
// admin_level attribute; zoom_min and zoom_max are restored onto the
// feature and removed from its properties together with admin_level.
func ReadLevels(r io.Reader) ([]*lod.Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read levels")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode GeoJSON")
	}

	byLevel := make(map[lod.AdminLevel]*lod.Layer)
	for i, gf := range fc.Features {
		level, err := lod.ParseAdminLevel(lod.AttrString(gf.Properties[lod.AttrAdminLevel]))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "feature %d", i)
		}
		if gf.Geometry == nil || !geometry.IsPolygonal(gf.Geometry) {
			return nil, errors.New(errors.ErrCodeUnsupportedGeometry, "feature %d has %s geometry", i, geometryType(gf))
		}

		zoom := lod.ZoomRange{
			Min: zoomValue(gf.Properties[lod.AttrZoomMin]),
			Max: zoomValue(gf.Properties[lod.AttrZoomMax]),
		}
		if zoom.Min >= zoom.Max {
			zoom = lod.DefaultZoom(level)
		}

		props := make(map[string]any, len(gf.Properties))
		for k, v := range gf.Properties {
			switch k {
			case lod.AttrAdminLevel, lod.AttrZoomMin, lod.AttrZoomMax:
			default:
				props[k] = v
			}
		}

		layer := byLevel[level]
		if layer == nil {
			layer = &lod.Layer{Level: level, Zoom: zoom, CRS: lod.GeographicCRS}
			byLevel[level] = layer
		}
		layer.Features = append(layer.Features, &lod.Feature{
			ID:         lod.AttrString(gf.ID),
			Geometry:   gf.Geometry,
			Properties: props,
			Level:      level,
			Zoom:       zoom,
		})
	}

	var out []*lod.Layer
	for _, l := range lod.Levels {
		if layer := byLevel[l]; layer != nil {
			out = append(out, layer)
		}
	}
	return out, nil
}

// ImportLevels reads every file in paths with [ReadLevels] and returns the
// layers of each level, finest first. Layers of the same level found in
// different files are concatenated.
func ImportLevels(paths ...string) ([]*lod.Layer, error) {
	byLevel := make(map[lod.AdminLevel]*lod.Layer)
	for _, path := range paths {
		layers, err := importLevels(path)
		if err != nil {
			return nil, err
		}
		for _, l := range layers {
			if prev := byLevel[l.Level]; prev != nil {
				prev.Features = append(prev.Features, l.Features...)
				continue
			}
			byLevel[l.Level] = l
		}
	}

	var out []*lod.Layer
	for _, l := range lod.Levels {
		if layer := byLevel[l]; layer != nil {
			out = append(out, layer)
		}
	}
	return out, nil
}

func importLevels(path string) ([]*lod.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeInputMissing, err, "level file %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadLevels(f)
}

func zoomValue(v any) int {
	switch v := v.(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
