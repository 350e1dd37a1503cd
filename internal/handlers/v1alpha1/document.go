package v1alpha1

import (
	"net/http"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/handlers/v1alpha1/mappers"
	"github.com/paperlane/paperlane/internal/handlers/validator"
	"github.com/paperlane/paperlane/pkg/log"
)

// (GET /api/v1/documents)
func (h *ServiceHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	docs, err := h.dispatchSrv.ListDocuments(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.DocumentListToApi(docs))
}

// (POST /api/v1/documents)
func (h *ServiceHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("document_handler").WithContext(r.Context()).Operation("create_document").Build()

	var form v1alpha1.DocumentCreate
	if err := decode(r, &form, validator.NewDocumentValidationRules()...); err != nil {
		logger.Error(err).Log()
		badRequest(w, r, err)
		return
	}

	user := auth.MustHaveUser(r.Context())
	doc, err := h.dispatchSrv.CreateDocument(r.Context(), user, mappers.DocumentFormApi(form))
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err)
		return
	}

	logger.Success().WithUUID("document_id", doc.ID).Log()
	respond(w, r, http.StatusCreated, mappers.DocumentToApi(*doc))
}

// (GET /api/v1/documents/{id})
func (h *ServiceHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	doc, err := h.dispatchSrv.GetDocument(r.Context(), auth.MustHaveUser(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.DocumentToApi(*doc))
}

// (POST /api/v1/documents/{id}/analysis)
func (h *ServiceHandler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	var form v1alpha1.AnalysisSave
	if err := decode(r, &form); err != nil {
		badRequest(w, r, err)
		return
	}

	doc, err := h.dispatchSrv.SaveAnalysis(r.Context(), auth.MustHaveUser(r.Context()), id, form.Summary)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.DocumentToApi(*doc))
}

// (POST /api/v1/documents/{id}/process)
func (h *ServiceHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	logger := log.NewDebugLogger("document_handler").WithContext(r.Context()).Operation("process_document").WithUUID("document_id", id).Build()

	var form v1alpha1.ProcessRequest
	if err := decode(r, &form, validator.NewDocumentValidationRules()...); err != nil {
		logger.Error(err).Log()
		badRequest(w, r, err)
		return
	}

	strategy := ""
	if form.Strategy != nil {
		strategy = *form.Strategy
	}

	doc, err := h.dispatchSrv.Submit(r.Context(), auth.MustHaveUser(r.Context()), id, strategy)
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err)
		return
	}

	logger.Success().WithString("job_id", doc.JobID()).Log()
	respond(w, r, http.StatusAccepted, mappers.DocumentToApi(*doc))
}

// (GET /api/v1/documents/{id}/process-status)
func (h *ServiceHandler) GetProcessStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	res, err := h.reconcileSrv.Poll(r.Context(), auth.MustHaveUser(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.PollResultToApi(*res))
}

// (POST /api/v1/documents/{id}/retry)
func (h *ServiceHandler) RetryDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	doc, err := h.dispatchSrv.Retry(r.Context(), auth.MustHaveUser(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.DocumentToApi(*doc))
}
