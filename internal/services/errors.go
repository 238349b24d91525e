package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidScope marks a missing or unknown partner scope. Fatal:
	// nothing is mutated when it occurs.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrSourceUnavailable marks a failure to read raw input records.
	// Fatal to that import call only; the archive is left unchanged.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrClassificationUnavailable marks a failure of the AI classifier.
	// Never fatal; affected candidates degrade to unmatched.
	ErrClassificationUnavailable = errors.New("classification unavailable")
	// ErrMergeConflict marks an ambiguous merge that was resolved by the
	// deterministic survivor rule. Logged, never propagated.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrValidation marks malformed per-record input. Counted, not raised.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks retryable failures of external collaborators.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// ScopeFatal reports whether an error must abort the whole batch operation.
// Per-record and per-group failures are counted locally; only scope-level
// validation and unreadable input propagate to the caller.
func ScopeFatal(err error) bool {
	return errors.Is(err, ErrInvalidScope) || errors.Is(err, ErrSourceUnavailable)
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
