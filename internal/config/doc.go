// Package config loads, normalizes, and validates the TOML configuration
// for the dubber pipeline.
package config
