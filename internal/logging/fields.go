package logging

// Standardized attribute keys shared across components so log lines stay
// grep-able regardless of which package emitted them.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldJobID     = "job_id"
	FieldChunk     = "chunk_index"
	FieldStage     = "stage"
	FieldErrorHint = "error_hint"
)

// FieldImpact is the standardized key for the user-facing consequence of a warning.
const FieldImpact = "impact"
