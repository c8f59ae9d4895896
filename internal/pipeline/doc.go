// Package pipeline runs one decode, build, project and publish cycle over a results table.
//
// A run never aborts on a single bad row or region: those are skipped, logged and counted in
// the run's metrics. Only an unusable table stops the run. A missing summary row stops the
// projection but the region records are still published.
package pipeline
