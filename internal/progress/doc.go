// Package progress provides the in-process event bus that fans job
// progress, log, completion, and error events out to any number of
// concurrent observers.
package progress
