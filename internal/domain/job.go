package domain

// Job statuses reported by the document-processing service. Transitions are
// monotonic: submitted/processing may repeat, finished and failed are terminal.
const (
	JobStatusSubmitted  = "submitted"
	JobStatusProcessing = "processing"
	JobStatusFinished   = "finished"
	JobStatusFailed     = "failed"
)

// TerminalJobStatus reports whether a status never changes again.
func TerminalJobStatus(status string) bool {
	return status == JobStatusFinished || status == JobStatusFailed
}

// ProcessingResult is the payload a finished job carries: the document summary
// and the extracted plain text, plus any medications the summarizer identified.
type ProcessingResult struct {
	Summary       string       `json:"summary"`
	Medications   []Medication `json:"medications,omitempty"`
	ExtractedText string       `json:"extracted_text,omitempty"`
}

// Medication is a structured item inside a processed document's summary.
type Medication struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose,omitempty"`
}
