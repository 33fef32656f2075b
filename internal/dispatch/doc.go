// Package dispatch runs per-chunk dubbing work through a bounded worker
// pool. The pool bounds in-flight requests against the external dubbing
// service and isolates chunk failures from each other.
package dispatch
