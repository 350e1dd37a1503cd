// Package enginetest provides an in-memory engine.Client for tests.
package enginetest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/paperlane/paperlane/internal/engine"
)

type Fake struct {
	mu sync.Mutex

	// SubmitErr, when set, is returned by every Submit call.
	SubmitErr error
	// StatusErr, when set, is returned by every Status call.
	StatusErr error
	// OnSubmit, when set, runs at the start of every Submit call while the caller waits for the engine.
	OnSubmit func()

	jobs        map[string]*engine.JobStatus
	submissions []Received
	statusCalls int
	next        int
}

// Received records what Submit was called with.
type Received struct {
	JobID        string
	OriginalName string
	Original     []byte
	Reference    []byte
	Strategy     string
}

func New() *Fake {
	return &Fake{jobs: map[string]*engine.JobStatus{}}
}

func (f *Fake) Submit(ctx context.Context, req engine.SubmitRequest) (*engine.Submission, error) {
	if f.OnSubmit != nil {
		f.OnSubmit()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}

	f.next++
	jobID := fmt.Sprintf("job-%d", f.next)

	rcv := Received{JobID: jobID, OriginalName: req.Original.Name, Strategy: req.Strategy}
	if req.Original.Content != nil {
		rcv.Original, _ = io.ReadAll(req.Original.Content)
	}
	if req.Reference != nil && req.Reference.Content != nil {
		rcv.Reference, _ = io.ReadAll(req.Reference.Content)
	}
	f.submissions = append(f.submissions, rcv)
	f.jobs[jobID] = &engine.JobStatus{JobID: jobID, State: engine.StatePending}

	return &engine.Submission{JobID: jobID, StatusURL: "/jobs/" + jobID + "/status"}, nil
}

func (f *Fake) Status(ctx context.Context, jobID string) (*engine.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}

	status, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, engine.ErrJobNotFound)
	}
	cp := *status
	return &cp, nil
}

// SetStatus overrides what the engine reports for a job. Unknown jobs are created.
func (f *Fake) SetStatus(jobID string, status engine.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status.JobID = jobID
	f.jobs[jobID] = &status
}

// Complete marks the job successful with the given result.
func (f *Fake) Complete(jobID string, result engine.Result) {
	f.SetStatus(jobID, engine.JobStatus{State: engine.StateSuccess, Result: &result})
}

// Fail marks the job failed with the given reason.
func (f *Fake) Fail(jobID string, reason string) {
	f.SetStatus(jobID, engine.JobStatus{State: engine.StateFailure, Error: reason})
}

func (f *Fake) Submissions() []Received {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Received(nil), f.submissions...)
}

func (f *Fake) StatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}
