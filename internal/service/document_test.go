package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/paperlane/paperlane/internal/engine"
	"github.com/paperlane/paperlane/internal/events"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/internal/service/mappers"
	"github.com/paperlane/paperlane/internal/store/model"
)

var _ = Describe("dispatch service", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
	})

	AfterEach(func() {
		env.Close()
	})

	Context("create", func() {
		It("creates a pending document owned by the actor", func() {
			doc := env.createDocument(owner)
			Expect(doc.Status).To(Equal(model.DocumentPending))
			Expect(doc.OwnerID).To(Equal(owner.ID))
			Expect(doc.ExternalJobID).To(BeNil())

			activities := env.activities(service.ResourceDocument, doc.ID.String())
			Expect(activities).To(HaveLen(1))
			Expect(activities[0].Action).To(Equal(service.ActionDocumentUploaded))
		})

		It("rejects a form without a file reference", func() {
			_, err := env.dispatch.CreateDocument(context.TODO(), owner, mappers.DocumentForm{FileName: "a.pdf"})
			Expect(err).ToNot(BeNil())
			var validationErr *service.ErrValidation
			Expect(errors.As(err, &validationErr)).To(BeTrue())
			Expect(env.count("documents")).To(BeZero())
		})
	})

	Context("submit", func() {
		It("claims the document and stores the job id", func() {
			env.activate(owner)
			doc := env.createDocument(owner)

			submitted, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "header_focused")
			Expect(err).To(BeNil())
			Expect(submitted.Status).To(Equal(model.DocumentAnalyzing))
			Expect(submitted.JobID()).To(Equal("job-1"))
			Expect(submitted.Strategy).To(Equal("header_focused"))
			Expect(submitted.Attempts).To(Equal(1))
			Expect(submitted.JobStartedAt).ToNot(BeNil())

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.JobID()).To(Equal("job-1"))

			sent := env.engine.Submissions()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].OriginalName).To(Equal("thesis.docx"))
			Expect(string(sent[0].Original)).To(Equal("original content"))
			Expect(sent[0].Strategy).To(Equal("header_focused"))

			actions := []string{}
			for _, a := range env.activities(service.ResourceDocument, doc.ID.String()) {
				actions = append(actions, a.Action)
			}
			Expect(actions).To(ContainElement(service.ActionDocumentSubmitted))
			Eventually(env.writer.Types).Should(ContainElement(events.DocumentMessageKind))
		})

		It("sends the reference report along with the original", func() {
			env.activate(owner)
			env.writeFile("thesis.docx", "original content")
			env.writeFile("report.pdf", "reference content")
			ref := "report.pdf"
			doc, err := env.dispatch.CreateDocument(context.TODO(), owner, mappers.DocumentForm{FileName: "thesis.docx", FileRef: "thesis.docx", ReferenceRef: &ref})
			Expect(err).To(BeNil())

			_, err = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())
			Expect(string(env.engine.Submissions()[0].Reference)).To(Equal("reference content"))
		})

		It("refuses another user's document before writing anything", func() {
			env.activate(owner)
			doc := env.createDocument(owner)

			_, err := env.dispatch.Submit(context.TODO(), other, doc.ID, "")
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.DocumentPending))
			Expect(stored.Version).To(Equal(doc.Version))
			Expect(env.engine.Submissions()).To(BeEmpty())
		})

		It("lets an admin submit any document", func() {
			doc := env.createDocument(owner)

			submitted, err := env.dispatch.Submit(context.TODO(), admin, doc.ID, "")
			Expect(err).To(BeNil())
			Expect(submitted.JobID()).ToNot(BeEmpty())
		})

		It("refuses an owner without an active subscription", func() {
			doc := env.createDocument(owner)

			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrAccountInactive)).To(BeTrue())
			Expect(env.engine.Submissions()).To(BeEmpty())
		})

		It("returns not found for an unknown document", func() {
			_, err := env.dispatch.Submit(context.TODO(), admin, uuid.New(), "")
			Expect(errors.Is(err, service.ErrNotFound)).To(BeTrue())
		})

		It("refuses a document that is already in flight", func() {
			env.activate(owner)
			doc := env.createDocument(owner)
			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())

			_, err = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrJobAlreadyInFlight)).To(BeTrue())
			Expect(env.engine.Submissions()).To(HaveLen(1))
		})

		It("refuses a completed document", func() {
			env.activate(owner)
			doc := env.createDocument(owner)
			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())
			env.engine.Complete("job-1", engine.Result{OutputFile: "out.docx"})
			_, err = env.reconcile.Poll(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())

			_, err = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())
		})

		It("submits only once when two submissions race", func() {
			env.activate(owner)
			doc := env.createDocument(owner)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
				}(i)
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				Expect(errors.Is(err, service.ErrJobAlreadyInFlight)).To(BeTrue())
			}
			Expect(succeeded).To(Equal(1))
			Expect(env.engine.Submissions()).To(HaveLen(1))
		})

		It("fails the document when the engine is unreachable", func() {
			env.activate(owner)
			doc := env.createDocument(owner)
			env.engine.SubmitErr = fmt.Errorf("dial tcp: %w", engine.ErrUnreachable)

			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrEngineUnreachable)).To(BeTrue())

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.DocumentFailed))
			Expect(stored.ExternalJobID).To(BeNil())
			Expect(stored.ErrorDetail).ToNot(BeNil())
			Expect(*stored.ErrorDetail).To(ContainSubstring("unreachable"))
			Expect(env.count("processing_results")).To(BeZero())

			actions := []string{}
			for _, a := range env.activities(service.ResourceDocument, doc.ID.String()) {
				actions = append(actions, a.Action)
			}
			Expect(actions).To(ContainElement(service.ActionDocumentSubmitFailed))
		})

		It("fails the document when the engine rejects it", func() {
			env.activate(owner)
			doc := env.createDocument(owner)
			env.engine.SubmitErr = fmt.Errorf("bad file: %w", engine.ErrRejected)

			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrEngineRejected)).To(BeTrue())

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.DocumentFailed))
		})

		It("fails the document when its file is missing", func() {
			env.activate(owner)
			doc, err := env.dispatch.CreateDocument(context.TODO(), owner, mappers.DocumentForm{FileName: "gone.pdf", FileRef: "gone.pdf"})
			Expect(err).To(BeNil())

			_, err = env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrInvalidDocument)).To(BeTrue())
			Expect(env.engine.Submissions()).To(BeEmpty())

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.DocumentFailed))
		})
	})

	Context("analysis", func() {
		It("moves a pending document to analyzed", func() {
			doc := env.createDocument(owner)

			updated, err := env.dispatch.SaveAnalysis(context.TODO(), owner, doc.ID, json.RawMessage(`{"flags":12}`))
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.DocumentAnalyzed))
			Expect(string(updated.Analysis)).To(MatchJSON(`{"flags":12}`))
		})

		It("rejects invalid json", func() {
			doc := env.createDocument(owner)

			_, err := env.dispatch.SaveAnalysis(context.TODO(), owner, doc.ID, json.RawMessage(`{`))
			Expect(err).ToNot(BeNil())
		})

		It("submits an analyzed document", func() {
			env.activate(owner)
			doc := env.createDocument(owner)
			_, err := env.dispatch.SaveAnalysis(context.TODO(), owner, doc.ID, json.RawMessage(`{}`))
			Expect(err).To(BeNil())

			submitted, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())
			Expect(submitted.Status).To(Equal(model.DocumentAnalyzing))
		})
	})

	Context("retry", func() {
		It("resubmits a failed document straight to processing", func() {
			env.activate(owner)
			doc := env.createDocument(owner)
			env.engine.SubmitErr = fmt.Errorf("down: %w", engine.ErrUnreachable)
			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).ToNot(BeNil())

			retried, err := env.dispatch.Retry(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())
			Expect(retried.Status).To(Equal(model.DocumentPending))
			Expect(retried.ErrorDetail).To(BeNil())

			env.engine.SubmitErr = nil
			submitted, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())
			Expect(submitted.Status).To(Equal(model.DocumentAnalyzing))

			// a second failure after an accepted submission keeps the job id
			env.engine.Fail(submitted.JobID(), "corrupted file")
			res, err := env.reconcile.Poll(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())
			Expect(res.Document.Status).To(Equal(model.DocumentFailed))
			Expect(res.Document.JobID()).To(Equal(submitted.JobID()))

			_, err = env.dispatch.Retry(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())
			again, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())
			Expect(again.Status).To(Equal(model.DocumentProcessing))
			Expect(again.Attempts).To(Equal(2))
		})

		It("holds a resubmitted document in analyzing until the engine returns a job id", func() {
			env.activate(owner)
			doc := env.createDocument(owner)

			first, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())
			env.engine.Fail(first.JobID(), "corrupted file")
			_, err = env.reconcile.Poll(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())
			_, err = env.dispatch.Retry(context.TODO(), owner, doc.ID)
			Expect(err).To(BeNil())

			var during *model.Document
			env.engine.OnSubmit = func() {
				during, err = env.store.Document().Get(context.TODO(), doc.ID)
				Expect(err).To(BeNil())
			}

			again, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(err).To(BeNil())

			Expect(during).ToNot(BeNil())
			Expect(during.Status).To(Equal(model.DocumentAnalyzing))
			Expect(during.ExternalJobID).To(BeNil())

			Expect(again.Status).To(Equal(model.DocumentProcessing))
			Expect(again.JobID()).ToNot(BeEmpty())
			Expect(again.JobID()).ToNot(Equal(first.JobID()))
		})

		It("does not attach a job id to a claim failed while the engine call was running", func() {
			env.activate(owner)
			doc := env.createDocument(owner)

			env.engine.OnSubmit = func() {
				failed, err := env.reconcile.FailOverdue(context.TODO(), -time.Minute)
				Expect(err).To(BeNil())
				Expect(failed).To(Equal(1))
			}

			_, err := env.dispatch.Submit(context.TODO(), owner, doc.ID, "")
			Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())

			stored, err := env.store.Document().Get(context.TODO(), doc.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.DocumentFailed))
			Expect(stored.ExternalJobID).To(BeNil())
			Expect(stored.Attempts).To(BeZero())
		})

		It("refuses to retry a document that did not fail", func() {
			doc := env.createDocument(owner)

			_, err := env.dispatch.Retry(context.TODO(), owner, doc.ID)
			Expect(errors.Is(err, service.ErrInvalidState)).To(BeTrue())
		})
	})

	Context("jobs", func() {
		It("lists documents with jobs, in flight first", func() {
			env.activate(owner)
			first := env.createDocument(owner)
			second := env.createDocument(owner)
			env.createDocument(owner)

			_, err := env.dispatch.Submit(context.TODO(), owner, first.ID, "")
			Expect(err).To(BeNil())
			_, err = env.dispatch.Submit(context.TODO(), owner, second.ID, "")
			Expect(err).To(BeNil())
			env.engine.Complete("job-2", engine.Result{})
			_, err = env.reconcile.Poll(context.TODO(), owner, second.ID)
			Expect(err).To(BeNil())

			jobs, err := env.dispatch.ListJobs(context.TODO(), admin, mappers.JobFilter{})
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[0].ID).To(Equal(first.ID))
			Expect(jobs[1].ID).To(Equal(second.ID))
		})

		It("is admin only", func() {
			_, err := env.dispatch.ListJobs(context.TODO(), owner, mappers.JobFilter{})
			Expect(errors.Is(err, service.ErrUnauthorized)).To(BeTrue())
		})
	})
})
