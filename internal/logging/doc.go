// Package logging wraps log/slog with the attribute helpers and
// standardized field names used across dubber components.
package logging
