package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrRunNotFound      = errors.New("validation run not found")
	ErrUpstreamTimeout  = errors.New("upstream call timed out")
	ErrSynthesisFailure = errors.New("synthesis failure")
	ErrTemporary        = errors.New("temporary failure")
)

// Error kind labels recorded on validation results. The harness and quality
// dashboards pattern-match on these, so they stay stable.
const (
	ErrorKindSynthesis = "synthesis_failure"
	ErrorKindTimeout   = "upstream_timeout"
	ErrorKindTask      = "task_failure"
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ClassifyErrorKind maps an answer-path error onto a result label.
func ClassifyErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrSynthesisFailure):
		return ErrorKindSynthesis
	case IsKind(err, ErrUpstreamTimeout):
		return ErrorKindTimeout
	default:
		return ErrorKindTask
	}
}
