// Package estimate computes deterministic cost and wall-clock estimates
// for dubbing jobs, used by the estimate-then-confirm flow before any
// job state exists.
package estimate
