package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/engine"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/internal/store/model"
	"github.com/paperlane/paperlane/pkg/log"
	"github.com/paperlane/paperlane/pkg/metrics"
)

const overdueDetail = "engine did not report completion"

// PollResult is the outcome of one reconciliation.
type PollResult struct {
	Document model.Document
	// Result is set once the job is terminal.
	Result      *model.ProcessingResult
	EngineState engine.State
	// EngineUnavailable is true when the engine could not be asked. The document was left untouched.
	EngineUnavailable bool
}

// ReconcileService brings documents in line with what the engine reports about their jobs.
type ReconcileService struct {
	store    store.Store
	engine   engine.Client
	activity *ActivityRecorder
	logger   *log.StructuredLogger
	now      func() time.Time
}

func NewReconcileService(s store.Store, engineClient engine.Client, activity *ActivityRecorder) *ReconcileService {
	return &ReconcileService{
		store:    s,
		engine:   engineClient,
		activity: activity,
		logger:   log.NewDebugLogger("reconcile_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Poll reconciles one document on behalf of actor.
func (r *ReconcileService) Poll(ctx context.Context, actor auth.User, id uuid.UUID) (*PollResult, error) {
	doc, err := r.store.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDocumentNotFound(id)
		}
		return nil, err
	}

	if err := Authorize(actor, doc.OwnerID, ResourceDocument, id); err != nil {
		return nil, err
	}

	return r.reconcile(ctx, actor, doc)
}

// ReconcileJob reconciles the document that owns jobID as the system actor.
func (r *ReconcileService) ReconcileJob(ctx context.Context, jobID string) (*PollResult, error) {
	doc, err := r.store.Document().GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}

	return r.reconcile(ctx, auth.SystemUser(), doc)
}

// ListInFlight returns documents the engine is working on, least recently touched first.
func (r *ReconcileService) ListInFlight(ctx context.Context, limit int) (model.DocumentList, error) {
	opts := store.NewDocumentQueryOptions().WithSortOrder(store.SortByUpdatedTime)
	if limit > 0 {
		opts = opts.WithLimit(limit)
	}
	return r.store.Document().List(ctx,
		store.NewDocumentQueryFilter().ByStatus(model.DocumentAnalyzing, model.DocumentProcessing).WithJob(),
		opts,
	)
}

func (r *ReconcileService) reconcile(ctx context.Context, actor auth.User, doc *model.Document) (*PollResult, error) {
	tracer := r.logger.WithContext(ctx).Operation("reconcile_document").
		WithUUID("document_id", doc.ID).
		WithString("status", string(doc.Status)).
		WithString("job_id", doc.JobID()).
		Build()

	if doc.Status.Terminal() {
		result, err := r.storedResult(ctx, doc)
		if err != nil {
			return nil, err
		}
		tracer.Success().WithBool("terminal", true).Log()
		return &PollResult{Document: *doc, Result: result}, nil
	}

	if doc.ExternalJobID == nil {
		return nil, NewErrInvalidState(ResourceDocument, doc.ID, string(doc.Status), "poll")
	}

	status, err := r.engine.Status(ctx, *doc.ExternalJobID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUnreachable):
			metrics.IncreasePollTotalMetric("UNAVAILABLE")
			tracer.Warn("engine unavailable").WithString("error", err.Error()).Log()
			return &PollResult{Document: *doc, EngineUnavailable: true}, nil
		case errors.Is(err, engine.ErrJobNotFound):
			tracer.Error(err).Log()
			return nil, NewErrJobNotFound(*doc.ExternalJobID)
		default:
			tracer.Error(err).Log()
			return nil, NewErrEngineRejected(err)
		}
	}

	metrics.IncreasePollTotalMetric(string(status.State))
	tracer.Step("engine_status").WithString("engine_state", string(status.State)).Log()

	var res *PollResult
	switch {
	case status.State.InProgress():
		res, err = r.applyProgress(ctx, doc.ID, *doc.ExternalJobID, status)
	case status.State.Succeeded():
		res, err = r.applyTerminal(ctx, actor, doc.ID, *doc.ExternalJobID, status, "")
	case status.State.Failed():
		detail := status.Error
		if detail == "" {
			detail = "engine reported failure"
		}
		res, err = r.applyTerminal(ctx, actor, doc.ID, *doc.ExternalJobID, status, detail)
	default:
		metrics.IncreaseEngineAnomalyMetric(string(status.State))
		tracer.Warn("unknown engine state").WithString("engine_state", string(status.State)).Log()
		return &PollResult{Document: *doc, EngineState: status.State}, nil
	}
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	res.EngineState = status.State
	tracer.Success().WithString("status", string(res.Document.Status)).Log()
	return res, nil
}

func (r *ReconcileService) storedResult(ctx context.Context, doc *model.Document) (*model.ProcessingResult, error) {
	if doc.ExternalJobID == nil {
		return nil, nil
	}
	result, err := r.store.Result().GetByJob(ctx, doc.ID, *doc.ExternalJobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

func (r *ReconcileService) applyProgress(ctx context.Context, id uuid.UUID, jobID string, status *engine.JobStatus) (*PollResult, error) {
	var current *model.Document
	err := withStaleRetry(ctx, "apply_progress", func(ctx context.Context) error {
		return inTransaction(ctx, r.store, func(ctx context.Context) error {
			doc, err := r.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}
			current = doc
			if !doc.Status.InFlight() || doc.JobID() != jobID {
				return nil
			}

			percent := int(math.Round(status.Progress.Percent))
			if doc.Status == model.DocumentProcessing && doc.ProgressPercent == percent && doc.ProgressMessage == status.Progress.Message {
				return nil
			}

			doc.Status = model.DocumentProcessing
			doc.ProgressPercent = percent
			doc.ProgressMessage = status.Progress.Message
			current, err = r.store.Document().Update(ctx, *doc)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	res := &PollResult{Document: *current}
	if current.Status.Terminal() {
		res.Result, err = r.storedResult(ctx, current)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// applyTerminal records the outcome of a finished job. The document, its result and the activity are written
// in one transaction; a job that already has a result is left as it is.
func (r *ReconcileService) applyTerminal(ctx context.Context, actor auth.User, id uuid.UUID, jobID string, status *engine.JobStatus, failure string) (*PollResult, error) {
	var (
		current  *model.Document
		result   *model.ProcessingResult
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "apply_terminal", func(ctx context.Context) error {
		activity = nil
		return inTransaction(ctx, r.store, func(ctx context.Context) error {
			doc, err := r.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}
			current = doc

			if doc.JobID() != jobID {
				return nil
			}

			result, err = r.store.Result().GetByJob(ctx, id, jobID)
			switch {
			case err == nil:
				if doc.Status.Terminal() {
					return nil
				}
			case errors.Is(err, store.ErrRecordNotFound):
				result = nil
			default:
				return err
			}

			if doc.Status.Terminal() {
				return nil
			}

			now := r.now()
			if result == nil {
				result, err = r.store.Result().Create(ctx, newProcessingResult(doc, jobID, status, failure, now))
				if err != nil {
					if errors.Is(err, store.ErrDuplicateKey) {
						return store.ErrStaleState
					}
					return err
				}
			}

			from := doc.Status
			doc.JobCompletedAt = &now
			action := ActionDocumentCompleted
			if failure == "" {
				doc.Status = model.DocumentCompleted
				doc.ProgressPercent = 100
				doc.ProgressMessage = "completed"
				doc.ErrorDetail = nil
			} else {
				doc.Status = model.DocumentFailed
				doc.ProgressMessage = "failed"
				doc.ErrorDetail = &failure
				action = ActionDocumentFailed
			}

			current, err = r.store.Document().Update(ctx, *doc)
			if err != nil {
				return err
			}

			details := map[string]any{"job_id": jobID}
			if failure != "" {
				details["error"] = failure
			} else {
				details["flags_removed"] = result.FlagsRemoved
				details["success_rate"] = result.SuccessRate
			}
			activity, err = r.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     action,
				Resource:   ResourceDocument,
				ResourceID: id.String(),
				FromStatus: string(from),
				ToStatus:   string(current.Status),
				Details:    details,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	r.activity.Publish(ctx, activity)

	res := &PollResult{Document: *current, Result: result}
	if res.Result == nil && current.Status.Terminal() {
		res.Result, err = r.storedResult(ctx, current)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func newProcessingResult(doc *model.Document, jobID string, status *engine.JobStatus, failure string, now time.Time) model.ProcessingResult {
	result := model.ProcessingResult{
		DocumentID:    doc.ID,
		ExternalJobID: jobID,
		StrategyName:  doc.Strategy,
		Status:        model.ResultCompleted,
		CompletedAt:   now,
	}
	if status != nil {
		result.RawResponse = status.Raw
		if status.Result != nil {
			result.OutputArtifactRef = status.Result.OutputFile
			result.FlagsRemoved = status.Result.TotalReplacements
			result.SuccessRate = status.Result.MatchPercentage
			result.ProcessingTimeSeconds = status.Result.ProcessingTime
			result.FileSize = status.Result.FileSize
		}
	}
	if failure != "" {
		result.Status = model.ResultFailed
		result.ErrorDetail = &failure
	}
	return result
}

// FailOverdue fails in-flight documents whose job started more than deadline ago.
// It returns the number of documents failed.
func (r *ReconcileService) FailOverdue(ctx context.Context, deadline time.Duration) (int, error) {
	tracer := r.logger.WithContext(ctx).Operation("fail_overdue").
		WithParam("deadline", deadline.String()).
		Build()

	docs, err := r.store.Document().List(ctx,
		store.NewDocumentQueryFilter().ByStatus(model.DocumentAnalyzing, model.DocumentProcessing),
		nil,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-flight documents: %w", err)
	}

	cutoff := r.now().Add(-deadline)
	failed := 0
	for _, doc := range docs {
		if doc.JobStartedAt == nil || doc.JobStartedAt.After(cutoff) {
			continue
		}

		var res *PollResult
		if doc.ExternalJobID != nil {
			res, err = r.applyTerminal(ctx, auth.SystemUser(), doc.ID, *doc.ExternalJobID, nil, overdueDetail)
		} else {
			res, err = r.failUnsubmitted(ctx, doc.ID)
		}
		if err != nil {
			tracer.Warn("failed to fail overdue document").WithUUID("document_id", doc.ID).WithString("error", err.Error()).Log()
			continue
		}
		if res.Document.Status == model.DocumentFailed {
			failed++
		}
	}

	if failed > 0 {
		tracer.Success().WithInt("failed", failed).Log()
	}
	return failed, nil
}

// failUnsubmitted fails a document that was claimed but never got a job id, e.g. after a crash during dispatch.
func (r *ReconcileService) failUnsubmitted(ctx context.Context, id uuid.UUID) (*PollResult, error) {
	var (
		current  *model.Document
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "fail_unsubmitted", func(ctx context.Context) error {
		activity = nil
		return inTransaction(ctx, r.store, func(ctx context.Context) error {
			doc, err := r.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}
			current = doc
			if !doc.Status.InFlight() || doc.ExternalJobID != nil {
				return nil
			}

			from := doc.Status
			detail := overdueDetail
			now := r.now()
			doc.Status = model.DocumentFailed
			doc.ErrorDetail = &detail
			doc.ProgressMessage = "failed"
			doc.JobCompletedAt = &now
			current, err = r.store.Document().Update(ctx, *doc)
			if err != nil {
				return err
			}

			activity, err = r.activity.Record(ctx, ActivityEntry{
				Actor:      auth.SystemUser(),
				Action:     ActionDocumentFailed,
				Resource:   ResourceDocument,
				ResourceID: id.String(),
				FromStatus: string(from),
				ToStatus:   string(model.DocumentFailed),
				Details:    map[string]any{"error": detail},
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	r.activity.Publish(ctx, activity)
	return &PollResult{Document: *current}, nil
}
