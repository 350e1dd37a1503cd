package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/engine"
	"github.com/paperlane/paperlane/internal/service/mappers"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/internal/store/model"
	"github.com/paperlane/paperlane/pkg/log"
	"github.com/paperlane/paperlane/pkg/metrics"
	"github.com/paperlane/paperlane/pkg/storage"
)

const defaultJobsLimit = 100

// DispatchService owns the front half of the document lifecycle: creation, analysis and submission to the engine.
type DispatchService struct {
	store    store.Store
	engine   engine.Client
	files    storage.Reader
	activity *ActivityRecorder
	logger   *log.StructuredLogger
	now      func() time.Time
}

func NewDispatchService(s store.Store, engineClient engine.Client, files storage.Reader, activity *ActivityRecorder) *DispatchService {
	return &DispatchService{
		store:    s,
		engine:   engineClient,
		files:    files,
		activity: activity,
		logger:   log.NewDebugLogger("dispatch_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *DispatchService) CreateDocument(ctx context.Context, actor auth.User, form mappers.DocumentForm) (*model.Document, error) {
	tracer := d.logger.WithContext(ctx).Operation("create_document").
		WithString("owner_id", actor.ID).
		WithString("file_name", form.FileName).
		Build()

	if err := validateForm(form); err != nil {
		return nil, err
	}

	var (
		created  *model.Document
		activity *model.Activity
	)
	err := inTransaction(ctx, d.store, func(ctx context.Context) error {
		var err error
		created, err = d.store.Document().Create(ctx, form.ToDocument(actor.ID))
		if err != nil {
			return err
		}

		activity, err = d.activity.Record(ctx, ActivityEntry{
			Actor:      actor,
			Action:     ActionDocumentUploaded,
			Resource:   ResourceDocument,
			ResourceID: created.ID.String(),
			ToStatus:   string(created.Status),
			Details:    map[string]any{"file_name": created.FileName},
		})
		return err
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	d.activity.Publish(ctx, activity)
	tracer.Success().WithUUID("document_id", created.ID).Log()

	return created, nil
}

func (d *DispatchService) GetDocument(ctx context.Context, actor auth.User, id uuid.UUID) (*model.Document, error) {
	doc, err := d.store.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDocumentNotFound(id)
		}
		return nil, err
	}

	if err := Authorize(actor, doc.OwnerID, ResourceDocument, id); err != nil {
		return nil, err
	}

	return doc, nil
}

// SaveAnalysis stores the pre-processing analysis summary and marks the document ANALYZED.
func (d *DispatchService) SaveAnalysis(ctx context.Context, actor auth.User, id uuid.UUID, summary json.RawMessage) (*model.Document, error) {
	tracer := d.logger.WithContext(ctx).Operation("save_analysis").
		WithUUID("document_id", id).
		WithString("actor_id", actor.ID).
		Build()

	if !json.Valid(summary) {
		return nil, NewErrInvalidForm(errors.New("analysis summary is not valid json"))
	}

	if _, err := d.GetDocument(ctx, actor, id); err != nil {
		return nil, err
	}

	var (
		updated  *model.Document
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "save_analysis", func(ctx context.Context) error {
		return inTransaction(ctx, d.store, func(ctx context.Context) error {
			doc, err := d.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}

			if doc.Status != model.DocumentPending && doc.Status != model.DocumentAnalyzed {
				return NewErrInvalidState(ResourceDocument, id, string(doc.Status), "save analysis for")
			}

			from := doc.Status
			doc.Status = model.DocumentAnalyzed
			doc.Analysis = summary

			updated, err = d.store.Document().Update(ctx, *doc)
			if err != nil {
				return err
			}

			activity, err = d.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionDocumentAnalyzed,
				Resource:   ResourceDocument,
				ResourceID: id.String(),
				FromStatus: string(from),
				ToStatus:   string(updated.Status),
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	d.activity.Publish(ctx, activity)
	tracer.Success().Log()

	return updated, nil
}

// Submit hands the document to the engine. The document is claimed before the engine is called,
// so at most one submission per document is in flight.
func (d *DispatchService) Submit(ctx context.Context, actor auth.User, id uuid.UUID, strategy string) (*model.Document, error) {
	tracer := d.logger.WithContext(ctx).Operation("submit_document").
		WithUUID("document_id", id).
		WithString("actor_id", actor.ID).
		WithString("strategy", strategy).
		Build()

	doc, err := d.GetDocument(ctx, actor, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	if err := checkSubmittable(doc); err != nil {
		metrics.IncreaseDispatchTotalMetric("refused")
		tracer.Error(err).Log()
		return nil, err
	}

	if !actor.IsAdmin() {
		active, err := isEffectivelyActive(ctx, d.store, doc.OwnerID, d.now())
		if err != nil {
			return nil, err
		}
		if !active {
			metrics.IncreaseDispatchTotalMetric("refused")
			return nil, NewErrAccountInactive(doc.OwnerID)
		}
	}

	claimed, err := d.claim(ctx, id, strategy)
	if err != nil {
		metrics.IncreaseDispatchTotalMetric("refused")
		tracer.Error(err).Log()
		return nil, err
	}
	tracer.Step("claimed").WithString("status", string(claimed.Status)).WithInt("attempts", claimed.Attempts).Log()

	submission, err := d.send(ctx, claimed)
	if err != nil {
		metrics.IncreaseDispatchTotalMetric("failed")
		tracer.Error(err).Log()
		if ferr := d.markSubmitFailed(ctx, actor, claimed, err); ferr != nil {
			tracer.Warn("failed to record submission failure").WithString("error", ferr.Error()).Log()
		}
		return nil, err
	}

	var activity *model.Activity
	var submitted *model.Document
	err = withStaleRetry(ctx, "record_submission", func(ctx context.Context) error {
		return inTransaction(ctx, d.store, func(ctx context.Context) error {
			current, err := d.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}
			// the claim may have been failed as overdue while the engine call was running
			if current.Version != claimed.Version || current.ExternalJobID != nil {
				return NewErrInvalidState(ResourceDocument, id, string(current.Status), "record submission")
			}

			jobID := submission.JobID
			current.ExternalJobID = &jobID
			if current.Attempts > 0 {
				current.Status = model.DocumentProcessing
			}
			current.Attempts++
			current.ProgressMessage = "submitted"

			submitted, err = d.store.Document().Update(ctx, *current)
			if err != nil {
				return err
			}

			activity, err = d.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionDocumentSubmitted,
				Resource:   ResourceDocument,
				ResourceID: id.String(),
				FromStatus: string(doc.Status),
				ToStatus:   string(submitted.Status),
				Details:    map[string]any{"job_id": jobID, "strategy": submitted.Strategy, "attempt": submitted.Attempts},
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).WithString("job_id", submission.JobID).Log()
		return nil, fmt.Errorf("engine accepted job %s but it could not be recorded: %w", submission.JobID, err)
	}

	d.activity.Publish(ctx, activity)
	metrics.IncreaseDispatchTotalMetric("submitted")
	tracer.Success().WithString("job_id", submission.JobID).Log()

	return submitted, nil
}

func checkSubmittable(doc *model.Document) error {
	switch {
	case doc.Status.InFlight():
		return NewErrJobAlreadyInFlight(doc.ID, string(doc.Status))
	case doc.Status == model.DocumentPending, doc.Status == model.DocumentAnalyzed:
		return nil
	default:
		return NewErrInvalidState(ResourceDocument, doc.ID, string(doc.Status), "submit")
	}
}

// claim moves the document to ANALYZING. A resubmitted document only moves on to PROCESSING once
// the engine returned its job id.
func (d *DispatchService) claim(ctx context.Context, id uuid.UUID, strategy string) (*model.Document, error) {
	var claimed *model.Document
	err := withStaleRetry(ctx, "claim_document", func(ctx context.Context) error {
		return inTransaction(ctx, d.store, func(ctx context.Context) error {
			doc, err := d.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}
			if err := checkSubmittable(doc); err != nil {
				return err
			}

			now := d.now()
			doc.Status = model.DocumentAnalyzing
			if strategy != "" {
				doc.Strategy = strategy
			}
			doc.ExternalJobID = nil
			doc.ErrorDetail = nil
			doc.ProgressPercent = 0
			doc.ProgressMessage = "submitting"
			doc.JobStartedAt = &now
			doc.JobCompletedAt = nil

			claimed, err = d.store.Document().Update(ctx, *doc)
			return err
		})
	})
	return claimed, err
}

func (d *DispatchService) send(ctx context.Context, doc *model.Document) (*engine.Submission, error) {
	original, err := d.files.Open(ctx, doc.FileRef)
	if err != nil {
		return nil, documentFileError(doc.ID, "original", err)
	}
	defer original.Close()

	req := engine.SubmitRequest{
		Original: engine.File{Name: doc.FileName, Content: original},
		Strategy: doc.Strategy,
	}

	if doc.ReferenceRef != nil {
		var reference io.ReadCloser
		reference, err = d.files.Open(ctx, *doc.ReferenceRef)
		if err != nil {
			return nil, documentFileError(doc.ID, "reference", err)
		}
		defer reference.Close()
		req.Reference = &engine.File{Name: *doc.ReferenceRef, Content: reference}
	}

	submission, err := d.engine.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, engine.ErrUnreachable) {
			return nil, NewErrEngineUnreachable(err)
		}
		return nil, NewErrEngineRejected(err)
	}

	return submission, nil
}

func documentFileError(id uuid.UUID, which string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return NewErrInvalidDocument(id, fmt.Sprintf("%s file is missing", which))
	}
	return NewErrInvalidDocument(id, fmt.Sprintf("%s file cannot be read: %s", which, err))
}

// markSubmitFailed fails a claimed document that never reached the engine. No job id is stored.
func (d *DispatchService) markSubmitFailed(ctx context.Context, actor auth.User, claimed *model.Document, cause error) error {
	var activity *model.Activity
	err := withStaleRetry(ctx, "mark_submit_failed", func(ctx context.Context) error {
		return inTransaction(ctx, d.store, func(ctx context.Context) error {
			doc, err := d.store.Document().Get(ctx, claimed.ID)
			if err != nil {
				return err
			}
			if doc.Status != claimed.Status || doc.ExternalJobID != nil {
				return nil
			}

			from := doc.Status
			detail := fmt.Sprintf("submission failed: %s", cause)
			now := d.now()
			doc.Status = model.DocumentFailed
			doc.ErrorDetail = &detail
			doc.ProgressMessage = "failed"
			doc.JobCompletedAt = &now

			if _, err := d.store.Document().Update(ctx, *doc); err != nil {
				return err
			}

			activity, err = d.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionDocumentSubmitFailed,
				Resource:   ResourceDocument,
				ResourceID: doc.ID.String(),
				FromStatus: string(from),
				ToStatus:   string(model.DocumentFailed),
				Details:    map[string]any{"error": detail},
			})
			return err
		})
	})
	if err != nil {
		return err
	}

	d.activity.Publish(ctx, activity)
	return nil
}

// Retry returns a failed document to PENDING so it can be submitted again.
func (d *DispatchService) Retry(ctx context.Context, actor auth.User, id uuid.UUID) (*model.Document, error) {
	tracer := d.logger.WithContext(ctx).Operation("retry_document").
		WithUUID("document_id", id).
		WithString("actor_id", actor.ID).
		Build()

	if _, err := d.GetDocument(ctx, actor, id); err != nil {
		return nil, err
	}

	var (
		updated  *model.Document
		activity *model.Activity
	)
	err := withStaleRetry(ctx, "retry_document", func(ctx context.Context) error {
		return inTransaction(ctx, d.store, func(ctx context.Context) error {
			doc, err := d.store.Document().Get(ctx, id)
			if err != nil {
				return err
			}
			if doc.Status != model.DocumentFailed {
				return NewErrInvalidState(ResourceDocument, id, string(doc.Status), "retry")
			}

			previousJob := doc.JobID()
			doc.Status = model.DocumentPending
			doc.ExternalJobID = nil
			doc.ErrorDetail = nil
			doc.ProgressPercent = 0
			doc.ProgressMessage = ""
			doc.JobStartedAt = nil
			doc.JobCompletedAt = nil

			updated, err = d.store.Document().Update(ctx, *doc)
			if err != nil {
				return err
			}

			activity, err = d.activity.Record(ctx, ActivityEntry{
				Actor:      actor,
				Action:     ActionDocumentRetried,
				Resource:   ResourceDocument,
				ResourceID: id.String(),
				FromStatus: string(model.DocumentFailed),
				ToStatus:   string(model.DocumentPending),
				Details:    map[string]any{"previous_job_id": previousJob},
			})
			return err
		})
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	d.activity.Publish(ctx, activity)
	tracer.Success().Log()

	return updated, nil
}

// ListDocuments returns the actor's own documents, newest first.
func (d *DispatchService) ListDocuments(ctx context.Context, actor auth.User) (model.DocumentList, error) {
	return d.store.Document().List(ctx,
		store.NewDocumentQueryFilter().ByOwner(actor.ID),
		store.NewDocumentQueryOptions().WithSortOrder(store.SortByCreatedTimeDesc),
	)
}

// ListJobs is the admin job monitor: documents that reached the engine, in-flight ones first.
func (d *DispatchService) ListJobs(ctx context.Context, actor auth.User, filter mappers.JobFilter) (model.DocumentList, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	storeFilter := store.NewDocumentQueryFilter().WithJob()
	if len(filter.Statuses) > 0 {
		storeFilter = storeFilter.ByStatus(filter.Statuses...)
	}
	if filter.OwnerID != "" {
		storeFilter = storeFilter.ByOwner(filter.OwnerID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > defaultJobsLimit {
		limit = defaultJobsLimit
	}

	return d.store.Document().List(ctx, storeFilter,
		store.NewDocumentQueryOptions().
			InFlightFirst().
			WithSortOrder(store.SortByCreatedTimeDesc).
			WithLimit(limit),
	)
}
