package v1alpha1

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/handlers/validator"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/pkg/requestid"
)

type ServiceHandler struct {
	dispatchSrv  *service.DispatchService
	reconcileSrv *service.ReconcileService
	accountSrv   *service.AccountService
}

func NewServiceHandler(dispatch *service.DispatchService, reconcile *service.ReconcileService, accounts *service.AccountService) *ServiceHandler {
	return &ServiceHandler{
		dispatchSrv:  dispatch,
		reconcileSrv: reconcile,
		accountSrv:   accounts,
	}
}

// Routes mounts the user and admin API. The engine callback is mounted separately
// because it is authenticated with the engine API key.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/documents", h.ListDocuments)
		r.Post("/documents", h.CreateDocument)
		r.Get("/documents/{id}", h.GetDocument)
		r.Post("/documents/{id}/analysis", h.SaveAnalysis)
		r.Post("/documents/{id}/process", h.ProcessDocument)
		r.Get("/documents/{id}/process-status", h.GetProcessStatus)
		r.Post("/documents/{id}/retry", h.RetryDocument)

		r.Post("/accounts", h.RegisterAccount)
		r.Get("/accounts/me", h.GetMyAccount)
		r.Get("/accounts/{id}/status", h.GetAccountStatus)
		r.Post("/accounts/{id}/profile", h.CompleteProfile)
		r.Post("/accounts/{id}/payments", h.SubmitPayment)

		r.Get("/packages", h.ListPackages)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/payments/pending", h.ListPendingPayments)
			r.Post("/payments/{id}/decision", h.DecidePayment)
			r.Post("/accounts/{id}/suspend", h.SuspendAccount)
			r.Post("/accounts/{id}/reinstate", h.ReinstateAccount)
			r.Get("/jobs", h.ListJobs)
		})
	})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// decode reads a JSON body into v and validates it with rules. An empty body decodes to the zero value.
func decode(r *http.Request, v any, rules ...validator.ValidationRule) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode body: %w", err)
	}

	val := validator.NewValidator()
	val.Register(rules...)
	return val.Struct(v)
}

func respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	respond(w, r, http.StatusBadRequest, v1alpha1.Error{Message: err.Error(), RequestId: requestid.FromContextPtr(r.Context())})
}
