// Package lod builds the level-of-detail pyramid of administrative
// boundaries.
//
// The pyramid has three levels, finest first:
//
//	kecamatan  zoom 11-22  input validated and simplified at 0.0005°
//	kabupaten  zoom 7-10   kecamatan merged by district key, 100 m gap closing, 0.005°
//	provinsi   zoom 1-6    kabupaten merged by province key, 3000 m gap closing,
//	                       parts below 0.5% of the province dropped, 0.01°
//
// Each level consumes the previous level's simplified output. A [Merger]
// dissolves the features of one key into a single region by buffering them
// outward in a metric UTM frame, unioning, buffering back inward and
// cleaning with a zero-width buffer. Groups are independent and run on a
// bounded worker pool; results are placed by sorted key so the output order
// is deterministic.
//
// Failures are scoped to the feature or group that caused them and are
// collected on the [StageResult] rather than returned. A [Pyramid] whose
// later levels failed or were skipped still exposes the earlier levels.
//
// The package performs no I/O and logs only at debug level.
//
//	b := lod.NewBuilder()
//	p, err := b.Build(ctx, layer)
//	if err != nil {
//	    return err // cancelled or invalid policy
//	}
//	for _, s := range p.Stages {
//	    fmt.Println(s.Level, s.Status, s.Layer.Len())
//	}
package lod
