package extract

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an extraction failure. Kinds are persisted into the job
// record's error detail so callers can decide whether a resubmission is
// worth attempting.
type Kind string

const (
	KindUnreachable         Kind = "unreachable"
	KindUnsupported         Kind = "unsupported"
	KindEmptyContent        Kind = "empty_content"
	KindRateLimited         Kind = "rate_limited"
	KindCorrupt             Kind = "corrupt"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindTimeout             Kind = "timeout"

	// KindInternal covers unexpected faults during dispatch that do not map
	// to any extractor-level failure.
	KindInternal Kind = "internal"
)

// Error is an extractor failure with a classified kind and the underlying
// cause preserved for the job record.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Failf builds an Error with a formatted operation message and no cause.
func Failf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error preserving cause. A cause that is already a classified
// Error is returned unchanged so the innermost kind wins.
func Wrap(kind Kind, op string, cause error) error {
	var ee *Error
	if errors.As(cause, &ee) {
		return cause
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf maps any error produced during an extraction attempt to its kind.
// Deadline expiry takes precedence: a strategy aborted by the attempt budget
// reports timeout regardless of how the abort surfaced.
func KindOf(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}
