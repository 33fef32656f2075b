// Package staging owns the ephemeral per-job directory trees: creation,
// partial and full teardown, deferred output retention, stale-job reaping,
// and disk usage accounting. All paths stay confined under one base
// directory.
package staging
