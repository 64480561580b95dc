// Package pkg provides the core libraries for geolod boundary pyramids.
//
// # Overview
//
// Geolod turns a layer of Indonesian subdistrict (kecamatan) polygons into a
// three-level pyramid: kecamatan, kabupaten (districts) and provinsi
// (provinces). Each level is dissolved from the one below it and simplified
// for the map zoom range it is shown at. The pkg directory is organized into
// four main areas:
//
//  1. [geometry], [lod] - Domain logic (validation, projection, merging, simplification)
//  2. [io] - GeoJSON reading with schema mapping, and level export
//  3. [cache], [store] - Infrastructure (level cache, MongoDB boundary store)
//  4. [pipeline] - Orchestration (import → build → export)
//
// # Architecture
//
// The typical data flow through geolod:
//
//	kecamatan GeoJSON
//	         ↓
//	    [io] package (decode, map BNPB columns to canonical attributes)
//	         ↓
//	    [lod] package (validate, merge by key, filter fragments, simplify)
//	         ↓
//	    [pipeline] package (cache each level, write level files)
//	         ↓
//	    [store] package (replace the MongoDB collection, zoom queries)
//
// # Quick Start
//
//	cfg, err := pipeline.LoadConfig("geolod.toml")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input:  "kecamatan_bnpb.geojson",
//	    Config: cfg,
//	})
//
// # Errors
//
// All packages return [errors] values carrying a machine-readable code.
// Failures scoped to one feature or merge group never abort a level; they
// are collected on the level's stage result.
//
// # Observability
//
// [observability] exposes hook interfaces for level, cache and store
// events. The defaults do nothing.
//
// [geometry]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/geometry
// [lod]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/lod
// [io]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/io
// [cache]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/store
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/pipeline
// [errors]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/geolod/pkg/observability
package pkg
