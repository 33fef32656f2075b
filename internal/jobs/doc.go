// Package jobs defines the dubbing job data model: lifecycle statuses,
// per-chunk state, pipeline configuration, and chunk planning.
package jobs
