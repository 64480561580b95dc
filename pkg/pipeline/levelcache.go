package pipeline

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/lod"
)

// levelEntry is the cached form of a complete stage. Unlike exported files
// it keeps every property and the source IDs of merged features.
type levelEntry struct {
	Level         lod.AdminLevel             `json:"level"`
	Features      *geojson.FeatureCollection `json:"features"`
	Sources       [][]string                 `json:"sources"`
	InputFeatures int                        `json:"input_features"`
	Groups        int                        `json:"groups"`
	PartsDropped  int                        `json:"parts_dropped"`
}

func encodeLevel(res *lod.StageResult) ([]byte, error) {
	e := levelEntry{
		Level:         res.Level,
		Features:      geojson.NewFeatureCollection(),
		Sources:       make([][]string, 0, res.Layer.Len()),
		InputFeatures: res.InputFeatures,
		Groups:        res.Groups,
		PartsDropped:  res.PartsDropped,
	}
	for _, f := range res.Layer.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		e.Features.Append(gf)
		e.Sources = append(e.Sources, f.Sources)
	}
	return json.Marshal(e)
}

func decodeLevel(data []byte, spec lod.LevelSpec) (*lod.StageResult, error) {
	var e levelEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode cached %s level", spec.Level)
	}
	if e.Level != spec.Level || e.Features == nil || len(e.Sources) != len(e.Features.Features) {
		return nil, errors.New(errors.ErrCodeInternal, "cached entry does not match level %s", spec.Level)
	}

	layer := &lod.Layer{Level: spec.Level, Zoom: spec.Zoom, CRS: lod.GeographicCRS}
	for i, gf := range e.Features.Features {
		layer.Features = append(layer.Features, &lod.Feature{
			ID:         lod.AttrString(gf.ID),
			Geometry:   gf.Geometry,
			Properties: map[string]any(gf.Properties),
			Level:      spec.Level,
			Zoom:       spec.Zoom,
			Sources:    e.Sources[i],
		})
	}
	return &lod.StageResult{
		Level:         spec.Level,
		Status:        lod.StatusComplete,
		Layer:         layer,
		InputFeatures: e.InputFeatures,
		Groups:        e.Groups,
		PartsDropped:  e.PartsDropped,
	}, nil
}
