// Package notifications pushes terminal job events to an ntfy topic.
// This is out-of-process delivery for absent users; live in-process
// consumers follow the progress bus instead.
package notifications
