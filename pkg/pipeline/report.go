package pipeline

import (
	"fmt"
	"sort"

	"github.com/matzehuels/geolod/pkg/geometry"
	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
)

// Reporter receives named metrics while the pipeline runs. Metric names are
// dotted: "input.features", "kabupaten.bytes", "provinsi.parts".
type Reporter interface {
	Report(metric string, value any)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(metric string, value any)

// Report calls f.
func (f ReporterFunc) Report(metric string, value any) { f(metric, value) }

// NopReporter discards all metrics.
type NopReporter struct{}

// Report does nothing.
func (NopReporter) Report(string, any) {}

// Metric names reported for the input.
const (
	MetricInputFeatures = "input.features"
	MetricInputBytes    = "input.bytes"
	MetricInputPoints   = "input.points"
	MetricInputRejected = "input.rejected"
)

// Per-level metric suffixes; the full name is "<level>.<suffix>".
const (
	MetricStatus       = "status"
	MetricFeatures     = "features"
	MetricGroups       = "groups"
	MetricFailures     = "failures"
	MetricPartsDropped = "parts_dropped"
	MetricCached       = "cached"
	MetricDuration     = "duration"
	MetricBytes        = "bytes"
	MetricPoints       = "points"
	MetricParts        = "parts"
)

// LevelMetric returns the metric name for suffix at level l.
func LevelMetric(l lod.AdminLevel, suffix string) string {
	return fmt.Sprintf("%s.%s", l, suffix)
}

func reportImport(r Reporter, imp *lodio.ImportResult) {
	r.Report(MetricInputFeatures, imp.Layer.Len())
	r.Report(MetricInputBytes, imp.Size)
	r.Report(MetricInputPoints, imp.Points)
	r.Report(MetricInputRejected, len(imp.Rejected))
}

func reportStage(r Reporter, s *lod.StageResult, cached bool) {
	r.Report(LevelMetric(s.Level, MetricStatus), s.Status)
	r.Report(LevelMetric(s.Level, MetricFeatures), s.Layer.Len())
	r.Report(LevelMetric(s.Level, MetricGroups), s.Groups)
	r.Report(LevelMetric(s.Level, MetricFailures), len(s.Failures))
	r.Report(LevelMetric(s.Level, MetricPartsDropped), s.PartsDropped)
	r.Report(LevelMetric(s.Level, MetricCached), cached)
	r.Report(LevelMetric(s.Level, MetricDuration), s.Duration)
	if s.Level == lod.Provinsi && s.Usable() {
		r.Report(LevelMetric(s.Level, MetricParts), PartCounts(s.Layer))
	}
}

func reportExport(r Reporter, l lod.AdminLevel, e *lodio.ExportResult) {
	r.Report(LevelMetric(l, MetricBytes), e.Size)
	r.Report(LevelMetric(l, MetricPoints), e.Points)
}

// PartCount is the number of polygon parts of one feature.
type PartCount struct {
	Name  string
	Parts int
}

// PartCounts lists the polygon part count of every feature in layer, ordered
// by name. Features are named by their province name, or their ID when the
// attribute is missing.
func PartCounts(layer *lod.Layer) []PartCount {
	out := make([]PartCount, 0, layer.Len())
	for _, f := range layer.Features {
		name := f.Attr(lod.AttrProvinceName)
		if name == "" {
			name = f.ID
		}
		out = append(out, PartCount{Name: name, Parts: geometry.NumParts(f.Geometry)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
