// Package operations runs the long-lived worker operations behind the
// editor: remote imports, the model readiness gate, transcription and
// caption import.
package operations

import (
	"context"
	"errors"
	"strings"

	"captiondesk/internal/worker"
)

// ErrorKind classifies an operation failure.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindStart       ErrorKind = "start"
	KindPoll        ErrorKind = "poll"
	KindTerminal    ErrorKind = "terminal"
	KindIncomplete  ErrorKind = "incomplete"
	KindPersistence ErrorKind = "persistence"
)

// OpError is a failure with a message safe to show the user.
type OpError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements error.
func (e *OpError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Err
}

// newOpError builds an OpError.
func newOpError(kind ErrorKind, message string, cause error) *OpError {
	return &OpError{Kind: kind, Message: message, Err: cause}
}

// IsKind reports whether err is an OpError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var opErr *OpError
	return errors.As(err, &opErr) && opErr.Kind == kind
}

// Sentinels returned by controllers.
var (
	ErrImportInProgress = errors.New("import already in progress")
	ErrNoMedia          = errors.New("no media selected")
	ErrModelNotReady    = errors.New("model is not ready")
	ErrNoCaptions       = errors.New("no captions to clear")

	ErrTranscriptionCancelled = errors.New("transcription cancelled")
)

// UserMessage picks the text shown for err. Worker-reported and operation
// messages pass through; transport failures fall back to fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var opErr *OpError
	if errors.As(err, &opErr) && strings.TrimSpace(opErr.Message) != "" {
		return opErr.Message
	}
	var apiErr *worker.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// isCancellation reports whether err only reflects a cancelled context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
