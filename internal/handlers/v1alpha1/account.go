package v1alpha1

import (
	"net/http"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/handlers/v1alpha1/mappers"
	"github.com/paperlane/paperlane/internal/handlers/validator"
	"github.com/paperlane/paperlane/pkg/log"
)

// (POST /api/v1/accounts)
func (h *ServiceHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var form v1alpha1.AccountCreate
	if err := decode(r, &form); err != nil {
		badRequest(w, r, err)
		return
	}

	user := auth.MustHaveUser(r.Context())
	ownerID := user.ID
	if form.OwnerId != nil && *form.OwnerId != "" {
		ownerID = *form.OwnerId
	}

	account, err := h.accountSrv.Register(r.Context(), user, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, mappers.AccountToApi(*account))
}

// (GET /api/v1/accounts/me)
func (h *ServiceHandler) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountSrv.MyAccount(r.Context(), auth.MustHaveUser(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.AccountToApi(*account))
}

// (GET /api/v1/accounts/{id}/status)
func (h *ServiceHandler) GetAccountStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	status, err := h.accountSrv.Status(r.Context(), auth.MustHaveUser(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.AccountStatusToApi(*status))
}

// (POST /api/v1/accounts/{id}/profile)
func (h *ServiceHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	var form v1alpha1.ProfileCreate
	if err := decode(r, &form, validator.NewAccountValidationRules()...); err != nil {
		badRequest(w, r, err)
		return
	}

	account, err := h.accountSrv.CompleteProfile(r.Context(), auth.MustHaveUser(r.Context()), id, mappers.ProfileFormApi(form))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.AccountToApi(*account))
}

// (POST /api/v1/accounts/{id}/payments)
func (h *ServiceHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	logger := log.NewDebugLogger("account_handler").WithContext(r.Context()).Operation("submit_payment").WithUUID("account_id", id).Build()

	var form v1alpha1.PaymentCreate
	if err := decode(r, &form, validator.NewPaymentValidationRules()...); err != nil {
		logger.Error(err).Log()
		badRequest(w, r, err)
		return
	}

	proof, err := h.accountSrv.SubmitPayment(r.Context(), auth.MustHaveUser(r.Context()), id, mappers.PaymentFormApi(form))
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err)
		return
	}

	logger.Success().WithUUID("proof_id", proof.ID).Log()
	respond(w, r, http.StatusCreated, mappers.PaymentProofToApi(*proof))
}

// (GET /api/v1/packages)
func (h *ServiceHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.accountSrv.ListPackages(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.PackageListToApi(packages))
}
