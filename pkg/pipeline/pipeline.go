// Package pipeline runs the complete import → build → export flow for the
// boundary pyramid.
//
// This package ties the I/O-free core in [lod] to files, caches and progress
// reporting so the CLI and any other entry point share one implementation.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Import: read the kecamatan GeoJSON and map its attributes to the
//     canonical schema
//  2. Build: run each pyramid level, reusing cached levels when the input
//     and level policy are unchanged
//  3. Export: write one GeoJSON file per usable level, plus an optional
//     combined file
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input:  "bnpb_kecamatan.geojson",
//	    Config: cfg,
//	})
//	if err != nil {
//	    return err
//	}
//	for _, s := range result.Pyramid.Stages {
//	    fmt.Println(s.Level, s.Status)
//	}
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geolod/pkg/errors"
	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains everything one pipeline run needs.
type Options struct {
	// Input is the kecamatan GeoJSON file.
	Input string

	// Config holds the level policy, schema mapping and output settings.
	// Nil selects DefaultConfig.
	Config *Config

	// Refresh rebuilds every level even when a cached copy exists.
	Refresh bool

	// SkipExport builds the pyramid without writing files.
	SkipExport bool

	// Runtime collaborators
	Logger   *log.Logger
	Reporter Reporter

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Input == "" {
		return errors.New(errors.ErrCodeInvalidInput, "input file is required")
	}
	if o.Config == nil {
		o.Config = DefaultConfig()
	}
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Reporter == nil {
		o.Reporter = NopReporter{}
	}
	o.validated = true
	return nil
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Import is the decoded input including rejected features.
	Import *lodio.ImportResult

	// InputHash is the content hash of the input file and schema mapping.
	InputHash string

	// Pyramid holds one stage result per level.
	Pyramid *lod.Pyramid

	// Outputs lists the written files per level.
	Outputs map[lod.AdminLevel]*lodio.ExportResult

	// Combined is the combined file, if one was written.
	Combined *lodio.ExportResult

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which levels came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	InputFeatures int
	InputBytes    int64
	InputPoints   int
	ImportTime    time.Duration
	BuildTime     time.Duration
	ExportTime    time.Duration
}

// CacheInfo tracks cache hits per level.
type CacheInfo struct {
	LevelHits map[lod.AdminLevel]bool
}

// Hits returns the number of levels served from the cache.
func (c CacheInfo) Hits() int {
	n := 0
	for _, hit := range c.LevelHits {
		if hit {
			n++
		}
	}
	return n
}
