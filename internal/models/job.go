package models

import (
	"encoding/json"
	"time"
)

// Job statuses. Transitions are one-way: queued -> processing -> complete
// or error. A terminal job is never reopened.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusError      = "error"
)

// ProcessingJob tracks one asynchronous extraction run
type ProcessingJob struct {
	JobID        string          `json:"job_id"`
	Status       string          `json:"status"`
	PDFPath      string          `json:"pdf_path"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Terminal reports whether the job has reached a final state
func (j *ProcessingJob) Terminal() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusError
}

// JobResult is the payload stored on a completed job
type JobResult struct {
	InvoiceID  string  `json:"invoice_id"`
	ParserUsed string  `json:"parser_used"`
	Confidence float64 `json:"confidence"`
	Vendor     string  `json:"vendor"`
}
