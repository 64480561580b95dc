// Package io reads and writes administrative boundary layers as GeoJSON.
//
// # Input
//
// The input is a FeatureCollection of kecamatan polygons in WGS84. Source
// attribute names are mapped to the canonical hierarchy schema by a
// [SchemaMapping]; [DefaultMapping] accepts the BNPB column names:
//
//	nama_prop  -> nama_provinsi     kode_prop_ -> kode_provinsi
//	nama_kab   -> nama_kabupaten    kode_kab_s -> kode_kabupaten
//	nama_kec   -> nama_kecamatan    kode_kec_s -> kode_kecamatan
//
// Codes are normalized to strings so that 11 and "11" group together.
// Features that cannot be mapped or that are not polygonal are returned in
// [ImportResult.Rejected] instead of aborting the read.
//
//	res, err := io.ImportLayer("bnpb.geojson", io.DefaultMapping())
//	if err != nil {
//	    return err // INPUT_MISSING, INVALID_INPUT, ...
//	}
//
// # Output
//
// [ExportLayer] writes one level per file and [ExportLayers] writes several
// levels into a combined file. Each feature carries admin_level, zoom_min and
// zoom_max plus the hierarchy attributes of its level: province attributes
// for provinsi, province and district attributes for kabupaten, and every
// attribute for kecamatan. Files are written atomically.
package io
