package port

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors used across ports.
var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrJobNotFound          = errors.New("job not found")
	ErrNoExtractedText      = errors.New("document has no extracted text")
)

// ConfigError reports required configuration that is absent. It is never
// retried and is surfaced verbatim to the caller.
type ConfigError struct {
	Missing string // the env var(s) that must be set
	Hint    string
}

func (e *ConfigError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("missing configuration %s: %s", e.Missing, e.Hint)
	}
	return fmt.Sprintf("missing configuration %s", e.Missing)
}

// EmbeddingError means both the batched and per-item embedding paths failed.
// Status and Body carry the upstream response when one was received.
type EmbeddingError struct {
	Status int
	Body   string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("embedding failed (%d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// NotFoundError means the target vector index or namespace does not exist.
// It is distinct from transient backend errors so callers can render an
// actionable message instead of a generic failure.
type NotFoundError struct {
	Resource string // e.g. "index"
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

// TimeoutError means a job did not reach a terminal state within the window.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish within %s", e.JobID, e.Elapsed.Round(time.Second))
}

// JobFailedError means the processing service reported the job as failed.
// Reason carries the upstream-supplied error text.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Reason)
}
