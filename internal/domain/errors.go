package domain

import (
	"encoding/json"
	"errors"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrProtocol      = errors.New("protocol error")
	ErrUpload        = errors.New("upload error")
	ErrMissingResult = errors.New("missing result")
	ErrJobIncomplete = errors.New("job incomplete")
	ErrTransport     = errors.New("transport error")
)

// ErrorKind classifies why a generation request failed.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindProtocol      ErrorKind = "protocol"
	KindUpload        ErrorKind = "upload"
	KindMissingResult ErrorKind = "missing_result"
	KindJobIncomplete ErrorKind = "job_incomplete"
	KindTransport     ErrorKind = "transport"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindProtocol:
		return ErrProtocol
	case KindUpload:
		return ErrUpload
	case KindMissingResult:
		return ErrMissingResult
	case KindJobIncomplete:
		return ErrJobIncomplete
	case KindTransport:
		return ErrTransport
	}
	return nil
}

// GenerationError is the only error shape the orchestrator returns. Raw holds
// the last payload received from the remote service, or nil when none was.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Raw     json.RawMessage
	Err     error
}

// NewError builds a GenerationError of the given kind.
func NewError(kind ErrorKind, message string, raw json.RawMessage, cause error) *GenerationError {
	return &GenerationError{Kind: kind, Message: message, Raw: raw, Err: cause}
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is lets callers match on the kind sentinels, e.g. errors.Is(err, ErrUpload).
func (e *GenerationError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}
