package cli

import (
	"fmt"
	"strings"

	"github.com/matzehuels/geolod/pkg/lod"
	"github.com/matzehuels/geolod/pkg/pipeline"
)

// spinnerReporter shows pipeline progress on a spinner.
type spinnerReporter struct {
	spinner *Spinner
}

// Report implements pipeline.Reporter.
func (r spinnerReporter) Report(metric string, value any) {
	if metric == pipeline.MetricInputFeatures {
		r.spinner.SetMessage(fmt.Sprintf("Building %s level from %v features", lod.Kecamatan, value))
		return
	}
	level, suffix, ok := strings.Cut(metric, ".")
	if !ok || suffix != pipeline.MetricStatus {
		return
	}
	if next := lod.AdminLevel(level).Coarser(); next != "" {
		r.spinner.SetMessage(fmt.Sprintf("Building %s level", next))
	} else {
		r.spinner.SetMessage("Writing output files")
	}
}
