package domain

import "strings"

// RequestKind enumerates the supported input modalities.
type RequestKind string

const (
	RequestKindText  RequestKind = "text"
	RequestKindImage RequestKind = "image"
)

// GenerationRequest is a single text or image submission. Only the field
// matching Kind is read.
type GenerationRequest struct {
	Kind      RequestKind
	Prompt    string
	ImageData string
}

// Validate reports a validation GenerationError when the active input is empty.
func (r GenerationRequest) Validate() error {
	switch r.Kind {
	case RequestKindText:
		if strings.TrimSpace(r.Prompt) == "" {
			return NewError(KindValidation, "Prompt is required", nil, nil)
		}
	case RequestKindImage:
		if strings.TrimSpace(r.ImageData) == "" {
			return NewError(KindValidation, "Image is required", nil, nil)
		}
	default:
		return NewError(KindValidation, "Unsupported request kind", nil, nil)
	}
	return nil
}

// GenerationResult is the normalized success payload returned to clients.
type GenerationResult struct {
	ModelURL string `json:"modelUrl"`
}

// JobState enumerates the polling state machine. Pending, Success and Failed
// mirror the remote status field; Exhausted is reached locally when the
// attempt budget runs out.
type JobState string

const (
	JobPending   JobState = "pending"
	JobSuccess   JobState = "success"
	JobFailed    JobState = "failed"
	JobExhausted JobState = "exhausted"
)

// ParseJobState maps a remote status string onto the state machine. Anything
// other than "success" or "failed" keeps the job pending.
func ParseJobState(status string) JobState {
	switch status {
	case "success":
		return JobSuccess
	case "failed":
		return JobFailed
	default:
		return JobPending
	}
}

// Terminal reports whether the polling loop stops in this state.
func (s JobState) Terminal() bool {
	return s != JobPending
}
