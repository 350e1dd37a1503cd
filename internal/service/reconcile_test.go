package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/paperlane/paperlane/internal/engine"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/internal/store/model"
)

var _ = Describe("reconcile service", func() {
	var (
		env   *testEnv
		doc   *model.Document
		jobID string
	)

	BeforeEach(func() {
		env = newTestEnv()
		env.activate(owner)
		doc = env.createDocument(owner)

		submitted, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "header_focused")
		Expect(err).To(BeNil())
		jobID = submitted.JobID()
	})

	AfterEach(func() {
		env.Close()
	})

	It("records progress while the engine works", func() {
		env.engine.SetStatus(jobID, engine.JobStatus{State: engine.StateProgress, Progress: engine.Progress{Percent: 41.6, Message: "rewriting headers"}})

		res, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(res.EngineUnavailable).To(BeFalse())
		Expect(res.Result).To(BeNil())
		Expect(res.Document.Status).To(Equal(model.DocumentProcessing))
		Expect(res.Document.ProgressPercent).To(Equal(42))
		Expect(res.Document.ProgressMessage).To(Equal("rewriting headers"))
	})

	It("does not write when the progress did not change", func() {
		env.engine.SetStatus(jobID, engine.JobStatus{State: engine.StateProgress, Progress: engine.Progress{Percent: 10}})

		first, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		second, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(second.Document.Version).To(Equal(first.Document.Version))
	})

	It("completes the document exactly once", func() {
		env.engine.Complete(jobID, engine.Result{OutputFile: "thesis_clean.docx", TotalReplacements: 12, MatchPercentage: 98.5, ProcessingTime: 3.2})

		first, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(first.Document.Status).To(Equal(model.DocumentCompleted))
		Expect(first.Document.ProgressPercent).To(Equal(100))
		Expect(first.Document.JobCompletedAt).ToNot(BeNil())
		Expect(first.Result).ToNot(BeNil())
		Expect(first.Result.OutputArtifactRef).To(Equal("thesis_clean.docx"))
		Expect(first.Result.FlagsRemoved).To(Equal(12))

		calls := env.engine.StatusCalls()
		second, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(second.Document.Status).To(Equal(model.DocumentCompleted))
		Expect(second.Result).ToNot(BeNil())
		Expect(second.Result.ID).To(Equal(first.Result.ID))
		Expect(env.engine.StatusCalls()).To(Equal(calls))

		Expect(env.count("processing_results")).To(Equal(int64(1)))
		completed := 0
		for _, a := range env.activities(service.ResourceDocument, doc.ID.String()) {
			if a.Action == service.ActionDocumentCompleted {
				completed++
			}
		}
		Expect(completed).To(Equal(1))
	})

	It("fails the document with the engine's error", func() {
		env.engine.Fail(jobID, "corrupted docx")

		res, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(res.Document.Status).To(Equal(model.DocumentFailed))
		Expect(res.Document.ErrorDetail).ToNot(BeNil())
		Expect(*res.Document.ErrorDetail).To(Equal("corrupted docx"))
		Expect(res.Result).ToNot(BeNil())
		Expect(res.Result.Status).To(Equal(model.ResultFailed))
	})

	It("leaves the document untouched when the engine is unreachable", func() {
		env.engine.StatusErr = fmt.Errorf("timeout: %w", engine.ErrUnreachable)

		res, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(res.EngineUnavailable).To(BeTrue())
		Expect(res.Document.Status).To(Equal(model.DocumentAnalyzing))

		stored, err := env.store.Document().Get(context.TODO(), doc.ID)
		Expect(err).To(BeNil())
		Expect(stored.Version).To(Equal(res.Document.Version))
		Expect(env.count("processing_results")).To(BeZero())
	})

	It("reports a job the engine does not know as not found", func() {
		env.engine.StatusErr = fmt.Errorf("job %s: %w", jobID, engine.ErrJobNotFound)

		_, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())

		stored, err := env.store.Document().Get(context.TODO(), doc.ID)
		Expect(err).To(BeNil())
		Expect(stored.Status).To(Equal(model.DocumentAnalyzing))
	})

	It("ignores an unknown engine state", func() {
		env.engine.SetStatus(jobID, engine.JobStatus{State: engine.State("REVOKED")})

		res, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
		Expect(err).To(BeNil())
		Expect(res.Document.Status).To(Equal(model.DocumentAnalyzing))
	})

	It("refuses another user's document", func() {
		_, err := env.reconcile.Poll(context.TODO(), other, doc.ID)
		Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
		Expect(env.engine.StatusCalls()).To(BeZero())
	})

	It("returns not found for an unknown document", func() {
		_, err := env.reconcile.Poll(context.TODO(), owner, uuid.New())
		Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())
	})

	It("refuses to poll a document that was never submitted", func() {
		pending := env.createDocument(owner)

		_, err := env.reconcile.Poll(context.TODO(), owner, pending.ID)
		Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())
	})

	Context("by job id", func() {
		It("reconciles as the system actor", func() {
			env.engine.Complete(jobID, engine.Result{})

			res, err := env.reconcile.ReconcileJob(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(res.Document.Status).To(Equal(model.DocumentCompleted))

			activities := env.activities(service.ResourceDocument, doc.ID.String())
			last := activities[len(activities)-1]
			Expect(last.Action).To(Equal(service.ActionDocumentCompleted))
			Expect(last.ActorID).To(Equal("system"))
		})

		It("returns not found for an unknown job", func() {
			_, err := env.reconcile.ReconcileJob(context.TODO(), "job-404")
			Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())
		})
	})

	Context("in flight", func() {
		It("lists only submitted documents that are not terminal", func() {
			env.createDocument(owner)

			docs, err := env.reconcile.ListInFlight(context.TODO(), 10)
			Expect(err).To(BeNil())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal(doc.ID))

			env.engine.Complete(jobID, engine.Result{})
			_, err = env.reconcile.Poll(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())

			docs, err = env.reconcile.ListInFlight(context.TODO(), 10)
			Expect(err).To(BeNil())
			Expect(docs).To(BeEmpty())
		})
	})

	Context("overdue jobs", func() {
		It("keeps jobs inside the deadline", func() {
			failed, err := env.reconcile.FailOverdue(context.TODO(), time.Hour)
			Expect(err).To(BeNil())
			Expect(failed).To(BeZero())
		})

		It("fails jobs past the deadline", func() {
			failed, err := env.reconcile.FailOverdue(context.TODO(), 0)
			Expect(err).To(BeNil())
			Expect(failed).To(Equal(1))

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.DocumentFailed))
			Expect(*stored.ErrorDetail).To(Equal("engine did not report completion"))
			Expect(env.count("processing_results")).To(Equal(int64(1)))

			// a late answer from the engine does not revive the document
			env.engine.Complete(jobID, engine.Result{})
			res, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())
			Expect(res.Document.Status).To(Equal(model.DocumentFailed))
		})
	})
})
