// Package classify partitions pipeline records into pass, fail, ongoing and
// other buckets.
//
// The partition is generic over the record type and driven by a Predicates
// value, so builds and deployments share one implementation. Every record
// lands in exactly one bucket and input order is kept inside each bucket.
//
// NewestFirst and ScanBreaks implement the per-definition scan used by the
// broken checks: walking records from most to least recently completed, a
// pass clears its definition and any failure seen before that pass marks the
// definition broken.
package classify
