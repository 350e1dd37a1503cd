package v1alpha1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/handlers/v1alpha1/mappers"
	"github.com/paperlane/paperlane/pkg/log"
)

// (GET /api/v1/admin/payments/pending)
func (h *ServiceHandler) ListPendingPayments(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.accountSrv.ListPendingPaymentProofs(r.Context(), auth.MustHaveUser(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.PaymentReviewListToApi(reviews))
}

// (POST /api/v1/admin/payments/{id}/decision)
func (h *ServiceHandler) DecidePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	user := auth.MustHaveUser(r.Context())
	logger := log.NewDebugLogger("admin_handler").WithContext(r.Context()).Operation("decide_payment").
		WithUUID("proof_id", id).
		WithString("admin_id", user.ID).
		Build()

	var form v1alpha1.PaymentDecision
	if err := decode(r, &form); err != nil {
		logger.Error(err).Log()
		badRequest(w, r, err)
		return
	}

	proof, err := h.accountSrv.Decide(r.Context(), user, id, mappers.DecisionFormApi(form))
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err)
		return
	}

	logger.Success().WithString("status", string(proof.Status)).Log()
	respond(w, r, http.StatusOK, mappers.PaymentProofToApi(*proof))
}

// (POST /api/v1/admin/accounts/{id}/suspend)
func (h *ServiceHandler) SuspendAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	var form v1alpha1.SuspendRequest
	if err := decode(r, &form); err != nil {
		badRequest(w, r, err)
		return
	}

	account, err := h.accountSrv.Suspend(r.Context(), auth.MustHaveUser(r.Context()), id, form.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.AccountToApi(*account))
}

// (POST /api/v1/admin/accounts/{id}/reinstate)
func (h *ServiceHandler) ReinstateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	account, err := h.accountSrv.Reinstate(r.Context(), auth.MustHaveUser(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.AccountToApi(*account))
}

// (GET /api/v1/admin/jobs?status=ANALYZING,PROCESSING&owner=...&limit=...)
func (h *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, r, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	docs, err := h.dispatchSrv.ListJobs(r.Context(), auth.MustHaveUser(r.Context()), mappers.JobFilterApi(query.Get("status"), query.Get("owner"), limit))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.DocumentListToApi(docs))
}
