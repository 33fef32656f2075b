// Package pipeline drives dubbing jobs through their lifecycle: fetch the
// source, split it into chunks, dub each chunk through a bounded worker
// pool, merge the results, and finalize the output. The orchestrator is
// the single writer of every job record.
package pipeline
