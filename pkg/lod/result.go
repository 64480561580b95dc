package lod

import (
	"fmt"
	"slices"
	"time"

	"github.com/matzehuels/geolod/pkg/errors"
)

// Failure is one feature- or group-scoped error collected during a stage.
type Failure struct {
	Level AdminLevel
	// Subject is the feature ID or group key that failed.
	Subject string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Level, f.Subject, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Code returns the error code of the underlying error.
func (f Failure) Code() errors.Code { return errors.GetCode(f.Err) }

// Status summarizes the outcome of one stage.
type Status string

// Stage outcomes.
const (
	// StatusComplete means every input contributed to the output.
	StatusComplete Status = "complete"
	// StatusPartial means some features or groups failed but output exists.
	StatusPartial Status = "partial"
	// StatusFailed means the stage produced no features.
	StatusFailed Status = "failed"
	// StatusSkipped means the stage did not run because its input was empty.
	StatusSkipped Status = "skipped"
)

// StageResult is the outcome of building one level.
type StageResult struct {
	Level    AdminLevel
	Status   Status
	Layer    *Layer
	Failures []Failure

	InputFeatures int
	Groups        int
	// PartsDropped counts polygon parts removed by the fragment filter.
	PartsDropped int
	Duration     time.Duration
}

// Usable reports whether the stage produced features that can be written.
func (r *StageResult) Usable() bool {
	return r != nil && (r.Status == StatusComplete || r.Status == StatusPartial) && r.Layer.Len() > 0
}

// FailuresByCode counts failures per error code.
func (r *StageResult) FailuresByCode() map[errors.Code]int {
	counts := make(map[errors.Code]int)
	for _, f := range r.Failures {
		counts[f.Code()]++
	}
	return counts
}

// settle derives the status from the produced layer and failures and stamps
// the level onto every failure.
func (r *StageResult) settle() {
	for i := range r.Failures {
		r.Failures[i].Level = r.Level
	}
	switch {
	case r.Layer.Len() == 0:
		r.Status = StatusFailed
	case len(r.Failures) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusComplete
	}
}

func skipped(level AdminLevel) *StageResult {
	return &StageResult{Level: level, Status: StatusSkipped}
}

// Pyramid holds one stage result per level in build order.
type Pyramid struct {
	Stages []*StageResult
}

// Stage returns the result for level l, or nil.
func (p *Pyramid) Stage(l AdminLevel) *StageResult {
	for _, s := range p.Stages {
		if s.Level == l {
			return s
		}
	}
	return nil
}

// Complete reports whether every level finished without failures.
func (p *Pyramid) Complete() bool {
	if len(p.Stages) == 0 {
		return false
	}
	for _, s := range p.Stages {
		if s.Status != StatusComplete {
			return false
		}
	}
	return true
}

// Layers returns the usable layers, finest first.
func (p *Pyramid) Layers() []*Layer {
	var out []*Layer
	for _, s := range p.Stages {
		if s.Usable() {
			out = append(out, s.Layer)
		}
	}
	return out
}

// CoarsestFirst returns the usable layers from provinsi down to kecamatan.
func (p *Pyramid) CoarsestFirst() []*Layer {
	layers := p.Layers()
	slices.Reverse(layers)
	return layers
}

// Failures returns the failures of all stages in build order.
func (p *Pyramid) Failures() []Failure {
	var out []Failure
	for _, s := range p.Stages {
		out = append(out, s.Failures...)
	}
	return out
}
