package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubmission        = errors.New("job submission failed")
	ErrJobFailed         = errors.New("remote job failed")
	ErrJobExpired        = errors.New("remote job expired")
	ErrPollTimeout       = errors.New("poll timeout")
	ErrRetrieval         = errors.New("artifact retrieval failed")
	ErrExtraction        = errors.New("archive extraction failed")
	ErrPlacement         = errors.New("output placement failed")
	ErrDirectoryCreation = errors.New("directory creation failed")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTransient         = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// SkipReason maps a task failure to the short reason recorded when a file is skipped.
func SkipReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, ErrSubmission):
		return "submission failed"
	case errors.Is(err, ErrJobFailed):
		return "job failed"
	case errors.Is(err, ErrJobExpired):
		return "job expired"
	case errors.Is(err, ErrPollTimeout):
		return "poll timeout"
	case errors.Is(err, ErrRetrieval):
		return "download failed"
	case errors.Is(err, ErrExtraction):
		return "extraction failed"
	case errors.Is(err, ErrPlacement):
		return "placement failed"
	case errors.Is(err, ErrDirectoryCreation):
		return "directory creation failed"
	case errors.Is(err, ErrValidation):
		return "invalid input"
	default:
		return "unexpected error"
	}
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
