// Package jobstore persists dubbing job records. Two backends satisfy the
// same Store interface: SQLite for the default single-node deployment and
// Redis for shared-state deployments.
package jobstore
