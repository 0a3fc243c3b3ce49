// Package apperr defines the error taxonomy shared by the attendance
// workflow. Every error that crosses the core boundary carries a Kind so the
// HTTP layer can map it to a status without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow error.
type Kind int

const (
	// KindUnknown covers wrapped infrastructure failures with no mapping.
	KindUnknown Kind = iota
	// KindInvalidInput is a caller-correctable request problem. Never retried.
	KindInvalidInput
	// KindServiceUnavailable means the recognizer was unreachable or timed
	// out. The workflow does not retry; the caller may resubmit later.
	KindServiceUnavailable
	// KindLowConfidence is the terminal business rejection of a capture whose
	// confidence fell below the review threshold.
	KindLowConfidence
	// KindNotFound means the referenced record, entry or personnel does not exist.
	KindNotFound
	// KindPermissionDenied is a role or station scope violation.
	KindPermissionDenied
	// KindAlreadyReviewed is a second approve/reject on a terminal entry.
	KindAlreadyReviewed
	// KindAlternationConflict is a concurrent-write collision on the
	// time-in/time-out sequence, surfaced after internal retries ran out.
	KindAlternationConflict
)

// Error is the concrete type behind every classified workflow error.
type Error struct {
	Kind Kind
	Msg  string
	// Confidence is set for low-confidence rejections so callers can show
	// actionable feedback.
	Confidence float64
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// LowConfidence builds the terminal rejection outcome for a capture.
func LowConfidence(confidence float64) *Error {
	return &Error{
		Kind:       KindLowConfidence,
		Msg:        fmt.Sprintf("low confidence recognition (%.1f%%), please try again with better lighting or positioning", confidence*100),
		Confidence: confidence,
	}
}

// KindOf extracts the Kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
