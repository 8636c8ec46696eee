package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/commentum/commentum/moderation/reports"
	"github.com/commentum/commentum/moderation/state"
	"github.com/commentum/commentum/moderation/store"
)

// Error taxonomy for command processing. The first four codes are
// terminal and reported straight back to the actor; partial failures
// carry enough detail for a targeted retry; upstream failures on writes
// are never blindly retried because the write outcome is unknown.
type Code string

const (
	CodePermissionDenied    Code = "permission_denied"
	CodeNotFound            Code = "not_found"
	CodeInvalidInput        Code = "invalid_input"
	CodeConflict            Code = "conflict"
	CodePartialFailure      Code = "partial_failure"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
)

type CommandError struct {
	Code    Code
	Message string
	err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.err
}

func permissionDenied(format string, args ...any) *CommandError {
	return &CommandError{Code: CodePermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func conflict(err error) *CommandError {
	return &CommandError{Code: CodeConflict, Message: err.Error(), err: err}
}

func partialFailure(msg string) *CommandError {
	return &CommandError{Code: CodePartialFailure, Message: msg}
}

func upstream(err error) *CommandError {
	return &CommandError{Code: CodeUpstreamUnavailable, Message: err.Error(), err: err}
}

// classify maps lower-layer errors onto the taxonomy. Unknown errors are
// treated as upstream failures (fail closed).
func classify(err error) *CommandError {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	var applied *state.AlreadyAppliedError
	if errors.As(err, &applied) {
		return conflict(err)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &CommandError{Code: CodeNotFound, Message: err.Error(), err: err}
	case errors.Is(err, state.ErrNoWarnings),
		errors.Is(err, reports.ErrAlreadyReported),
		errors.Is(err, reports.ErrSelfReport),
		errors.Is(err, reports.ErrContentDeleted):
		return conflict(err)
	case errors.Is(err, reports.ErrReportNotFound):
		return &CommandError{Code: CodeNotFound, Message: err.Error(), err: err}
	case errors.Is(err, reports.ErrInvalidReason),
		errors.Is(err, reports.ErrInvalidResolution):
		return &CommandError{Code: CodeInvalidInput, Message: err.Error(), err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return upstream(err)
	default:
		return upstream(err)
	}
}

// terminal errors must not be retried; anything else is assumed to be a
// transient upstream problem
func retryable(err error) bool {
	c := classify(err)
	return c.Code == CodeUpstreamUnavailable &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, context.Canceled)
}

// retryRead re-attempts a single idempotent read when the first attempt
// fails transiently. Writes are never retried this way: after a failed
// write the outcome is unknown.
func retryRead[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err != nil && retryable(err) {
		return fn(ctx)
	}
	return v, err
}
