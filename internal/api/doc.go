// Package api exposes the job surface consumed by transports: start,
// status, cancel, retry, list, delete, and the pre-submission estimates.
// DTOs decouple external consumers from internal job models.
package api
