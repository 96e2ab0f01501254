// Package apperr implements the error taxonomy as data instead of exception
// strings, per spec §7 and §9's "error-as-data" design note.
package apperr

import "fmt"

// Kind enumerates the error taxonomy from spec §7.
type Kind string

const (
	Unauthenticated       Kind = "unauthenticated"
	Forbidden             Kind = "forbidden"
	NotFound              Kind = "not_found"
	InvalidInput          Kind = "invalid_input"
	Conflict              Kind = "conflict"
	QuotaExceeded         Kind = "quota_exceeded"
	RateLimited           Kind = "rate_limited"
	UnprocessableEntity   Kind = "unprocessable_entity"
	DependencyUnavailable Kind = "dependency_unavailable"
	PipelineStageFailure  Kind = "pipeline_stage_failure"
	Internal              Kind = "internal"
)

// Error is the sum type every component-level failure in the pipeline
// should resolve to before it crosses a package boundary.
type Error struct {
	Kind  Kind
	Msg   string
	Stage string // only set for PipelineStageFailure
	Cause error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: stage %s: %s", e.Kind, e.Stage, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a plain taxonomy error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a taxonomy kind to an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Stage builds a PipelineStageFailure carrying the failing stage's name,
// per spec §9 ("Pipeline stage failures should be a sum type
// PipelineStageFailure{stage, cause}").
func Stage(stage string, cause error) *Error {
	return &Error{Kind: PipelineStageFailure, Stage: stage, Msg: cause.Error(), Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
