package port

import (
	"context"
	"encoding/json"
)

// FileUpload is one file submitted for external processing.
type FileUpload struct {
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	FileContent string `json:"file_content"` // base64
}

// EnqueuedJob identifies a processing job accepted for one uploaded file.
type EnqueuedJob struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
}

// JobUpdate is one observation of a job's status. Result is the raw payload of
// a finished job; its shape is validated by the caller.
type JobUpdate struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Stage  string          `json:"stage,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ProcessingClient talks to the external document-processing service that
// extracts and summarizes uploaded files asynchronously.
type ProcessingClient interface {
	// Submit enqueues one job per file and returns the job handles.
	Submit(ctx context.Context, files []FileUpload) ([]EnqueuedJob, error)

	// JobStatus fetches the current status of a job. An unknown job surfaces
	// as ErrJobNotFound.
	JobStatus(ctx context.Context, jobID string) (*JobUpdate, error)
}
