package engine

import (
	"context"
	"io"
	"strings"
)

// State is the job state reported by the processing engine.
type State string

const (
	StatePending  State = "PENDING"
	StateRunning  State = "RUNNING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateComplete State = "COMPLETED"
	StateFailure  State = "FAILURE"
	StateFailed   State = "FAILED"
)

func (s State) normalized() State {
	return State(strings.ToUpper(strings.TrimSpace(string(s))))
}

// InProgress reports whether the engine is still working on the job.
func (s State) InProgress() bool {
	switch s.normalized() {
	case StatePending, StateRunning, StateProgress:
		return true
	}
	return false
}

func (s State) Succeeded() bool {
	n := s.normalized()
	return n == StateSuccess || n == StateComplete
}

func (s State) Failed() bool {
	n := s.normalized()
	return n == StateFailure || n == StateFailed
}

// Client talks to the asynchronous processing engine.
type Client interface {
	// Submit uploads the document and returns the job the engine created for it.
	Submit(ctx context.Context, req SubmitRequest) (*Submission, error)
	// Status returns the current state of a job.
	Status(ctx context.Context, jobID string) (*JobStatus, error)
}

type File struct {
	Name    string
	Content io.Reader
}

type SubmitRequest struct {
	Original  File
	Reference *File
	Strategy  string
}

type Submission struct {
	JobID     string
	StatusURL string
}

type Progress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

type Result struct {
	OutputFile        string  `json:"output_file"`
	TotalReplacements int     `json:"total_replacements"`
	MatchPercentage   float64 `json:"match_percentage"`
	ProcessingTime    float64 `json:"processing_time"`
	FileSize          int64   `json:"file_size"`
}

type JobStatus struct {
	JobID    string
	State    State
	Progress Progress
	Result   *Result
	Error    string
	// Raw is the undecoded status body, kept for auditing.
	Raw []byte
}
