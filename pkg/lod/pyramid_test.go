package lod

import (
	"context"
	"slices"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	"github.com/matzehuels/geolod/pkg/observability"
)

// islandProvince returns one province of five adjacent 0.2° districts. The
// last district also owns a 0.014° islet 60 km offshore, about 0.1% of the
// province's area.
func islandProvince() *Layer {
	var features []*Feature
	for i, kab := range []string{"1101", "1102", "1103", "1104", "1105"} {
		lon := 100 + 0.2*float64(i)
		features = append(features, kecamatan(kab+"010", "11", kab, box(lon, 0.5, 0.2, 0.2)))
	}
	features = append(features, kecamatan("1105020", "11", "1105", box(101.6, 0.5, 0.014, 0.014)))
	return layerOf(features...)
}

func TestBuildDropsOffshoreIslet(t *testing.T) {
	p, err := NewBuilder().Build(context.Background(), islandProvince())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !p.Complete() {
		t.Fatalf("pyramid incomplete: %v", p.Failures())
	}

	kab := p.Stage(Kabupaten)
	if kab.Layer.Len() != 5 {
		t.Fatalf("kabupaten features = %d, want 5", kab.Layer.Len())
	}
	if n := geometry.NumParts(kab.Layer.Features[4].Geometry); n != 2 {
		t.Errorf("district 1105 parts = %d, want 2 (islet kept below provinsi)", n)
	}

	prov := p.Stage(Provinsi)
	if prov.Layer.Len() != 1 {
		t.Fatalf("provinsi features = %d, want 1", prov.Layer.Len())
	}
	g := prov.Layer.Features[0].Geometry
	if _, ok := g.(orb.Polygon); !ok {
		t.Fatalf("province geometry = %T, want orb.Polygon", g)
	}
	if b := g.Bound(); b.Max.Lon() > 101.5 {
		t.Errorf("province bound %v still reaches the islet", b)
	}
	if prov.PartsDropped != 1 {
		t.Errorf("PartsDropped = %d, want 1", prov.PartsDropped)
	}
}

func TestBuildTagsLevelsAndZoom(t *testing.T) {
	p, err := NewBuilder().Build(context.Background(), seamLayer())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(p.Stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(p.Stages))
	}

	for _, s := range p.Stages {
		if s.Layer.Level != s.Level {
			t.Errorf("layer level = %q, want %q", s.Layer.Level, s.Level)
		}
		for _, f := range s.Layer.Features {
			if f.Level != s.Level {
				t.Errorf("%s feature level = %q", s.Level, f.Level)
			}
			if f.Zoom != DefaultZoom(s.Level) {
				t.Errorf("%s feature zoom = %v, want %v", s.Level, f.Zoom, DefaultZoom(s.Level))
			}
		}
		assertValid(t, s.Layer)
	}

	kec := p.Stage(Kecamatan).Layer.Features[0]
	if kec.Attr("luas") != "1.5" || kec.Attr(AttrSubdistrictName) == "" {
		t.Errorf("kecamatan lost pass-through attributes: %v", kec.Properties)
	}
	prov := p.Stage(Provinsi).Layer.Features[0]
	if _, ok := prov.Properties[AttrDistrictCode]; ok {
		t.Error("provinsi feature should not carry district attributes")
	}
}

func TestBuildCoverage(t *testing.T) {
	input := islandProvince()
	input.Features = append(input.Features,
		kecamatan("1201010", "12", "1201", box(98, 2, 0.1, 0.1)),
		kecamatan("1201020", "12", "1201", box(98.1, 2, 0.1, 0.1)),
		kecamatan("1202010", "12", "1202", box(98.2, 2, 0.1, 0.1)),
	)

	p, err := NewBuilder().Build(context.Background(), input)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	checkCoverage := func(finer, coarser *Layer) {
		t.Helper()
		seen := make(map[string]int)
		for _, f := range coarser.Features {
			for _, src := range f.Sources {
				seen[src]++
			}
		}
		for _, id := range finer.IDs() {
			if seen[id] != 1 {
				t.Errorf("%s feature %s derived into %d %s features, want 1", finer.Level, id, seen[id], coarser.Level)
			}
		}
	}
	checkCoverage(p.Stage(Kecamatan).Layer, p.Stage(Kabupaten).Layer)
	checkCoverage(p.Stage(Kabupaten).Layer, p.Stage(Provinsi).Layer)

	if got := p.Stage(Provinsi).Layer.Len(); got != 2 {
		t.Errorf("provinsi features = %d, want 2", got)
	}
}

func TestBuildPartialPyramid(t *testing.T) {
	input := seamLayer()
	for _, f := range input.Features {
		delete(f.Properties, AttrDistrictCode)
	}

	p, err := NewBuilder().Build(context.Background(), input)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := map[AdminLevel]Status{
		Kecamatan: StatusComplete,
		Kabupaten: StatusFailed,
		Provinsi:  StatusSkipped,
	}
	for level, status := range want {
		if got := p.Stage(level).Status; got != status {
			t.Errorf("%s status = %s, want %s", level, got, status)
		}
	}
	if layers := p.Layers(); len(layers) != 1 || layers[0].Level != Kecamatan {
		t.Errorf("usable layers = %d, want only kecamatan", len(layers))
	}
	if p.Complete() {
		t.Error("Complete() = true for a partial pyramid")
	}
	for _, f := range p.Failures() {
		if !errors.Is(f, errors.ErrCodeSchemaMismatch) {
			t.Errorf("failure %v, want SCHEMA_MISMATCH", f)
		}
	}
}

func TestBuildKecamatanFailuresAreReported(t *testing.T) {
	input := seamLayer()
	input.Features = append(input.Features,
		kecamatan("broken", "11", "1101", orb.Polygon{orb.Ring{{100, 1}, {100.5, 1}, {100, 1}}}),
		kecamatan("line", "11", "1101", orb.LineString{{100, 1}, {100.5, 1}}),
	)

	res, err := NewBuilder().BuildLevel(context.Background(), DefaultLevels()[0], input)
	if err != nil {
		t.Fatalf("BuildLevel() error: %v", err)
	}
	if res.Status != StatusPartial {
		t.Errorf("status = %s, want %s", res.Status, StatusPartial)
	}
	if res.Layer.Len() != 3 {
		t.Errorf("features = %d, want 3", res.Layer.Len())
	}
	codes := res.FailuresByCode()
	if codes[errors.ErrCodeGeometryRepair] != 1 || codes[errors.ErrCodeUnsupportedGeometry] != 1 {
		t.Errorf("failure codes = %v", codes)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	p, err := NewBuilder().Build(context.Background(), layerOf())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	for _, s := range p.Stages {
		if s.Status != StatusSkipped {
			t.Errorf("%s status = %s, want skipped", s.Level, s.Status)
		}
	}
}

func TestBuildRejectsInvalidPolicy(t *testing.T) {
	b := NewBuilder()
	b.Levels[1].Tolerance = 0

	_, err := b.Build(context.Background(), seamLayer())
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}
}

func TestBuildRejectsMetricInput(t *testing.T) {
	in := seamLayer()
	in.CRS = "EPSG:32647"

	if _, err := NewBuilder().Build(context.Background(), in); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Build() code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}
	if _, err := NewMerger().Merge(context.Background(), in, DistrictKey, 100); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Merge() code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}
}

func TestBuildOutputIsGeographic(t *testing.T) {
	p, err := NewBuilder().Build(context.Background(), seamLayer())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	for _, l := range p.Layers() {
		if l.CRS != GeographicCRS {
			t.Errorf("%s CRS = %q, want %q", l.Level, l.CRS, GeographicCRS)
		}
	}
	if got := p.CoarsestFirst(); len(got) == 0 || got[0].Level != Provinsi {
		t.Errorf("CoarsestFirst() starts with %v, want provinsi", got)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewBuilder().Build(ctx, seamLayer())
	if err != context.Canceled {
		t.Errorf("Build() error = %v, want %v", err, context.Canceled)
	}
	if p != nil {
		t.Error("cancelled build should not return a pyramid")
	}
}

func TestBuildDoesNotModifyInput(t *testing.T) {
	input := islandProvince()
	snapshot := make([]*Feature, len(input.Features))
	for i, f := range input.Features {
		snapshot[i] = f.Clone()
	}

	if _, err := NewBuilder().Build(context.Background(), input); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	for i, f := range input.Features {
		if !orb.Equal(f.Geometry, snapshot[i].Geometry) || f.Level != snapshot[i].Level {
			t.Errorf("input feature %s was modified", f.ID)
		}
	}
}

func TestSimplificationCompoundsAcrossLevels(t *testing.T) {
	input := layerOf(
		kecamatan("1101010", "11", "1101", orb.Polygon{circleRing(100.3, 1, 0.2, 720)}),
	)

	p, err := NewBuilder().Build(context.Background(), input)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	var counts []int
	for _, s := range p.Stages {
		counts = append(counts, geometry.CountPoints(s.Layer.Features[0].Geometry))
	}
	sorted := slices.Clone(counts)
	slices.Sort(sorted)
	slices.Reverse(sorted)
	if !slices.Equal(counts, sorted) {
		t.Errorf("points per level = %v, want non-increasing", counts)
	}
}

func TestBuildLevelHooks(t *testing.T) {
	h := &recordingHooks{}
	observability.SetPipelineHooks(h)
	defer observability.Reset()

	if _, err := NewBuilder().Build(context.Background(), seamLayer()); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	want := []string{"kecamatan", "kabupaten", "provinsi"}
	if !slices.Equal(h.levels, want) {
		t.Errorf("completed levels = %v, want %v", h.levels, want)
	}
}
