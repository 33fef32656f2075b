// Package main hosts the dubber CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the dubbing pipeline in-process: run
// submits a job and follows its progress, jobs/show inspect the job store,
// retry/cancel/delete manage job lifecycle, and estimate prices prospective
// work. It centralizes configuration resolution, logging setup, and pipeline
// wiring so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
