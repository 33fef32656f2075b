package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad input rejected before any state is created.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for jobs that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks operations that are not legal for the job's
	// current status, such as deleting a running job.
	ErrInvalidState = errors.New("invalid state")
	// ErrChunkOperation marks a single chunk's external-call failure. It is
	// isolated to that chunk and never aborts sibling operations.
	ErrChunkOperation = errors.New("chunk operation failed")
	// ErrPipelineFatal marks download, merge, or finalize failures that move
	// the whole job to failed.
	ErrPipelineFatal = errors.New("pipeline failure")
	// ErrExternalTool marks missing or broken external binaries.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPipelineFatal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
