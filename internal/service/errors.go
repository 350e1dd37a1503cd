package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store"
)

// Error kinds. Every typed error below unwraps to one of these so callers can match with errors.Is.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrEngineUnreachable   = errors.New("processing engine unreachable")
	ErrEngineRejected      = errors.New("processing engine rejected the request")
	ErrStaleState          = store.ErrStaleState
	ErrMissingReason       = errors.New("missing reason")
	ErrJobAlreadyInFlight  = errors.New("job already in flight")
	ErrAccountInactive     = errors.New("account inactive")
	ErrInvalidDocument     = errors.New("invalid document")
	ErrAlreadyDecided      = fmt.Errorf("%w: payment proof already decided", ErrInvalidState)
	ErrAlreadyCompleted    = fmt.Errorf("%w: already completed", ErrInvalidState)
)

type ErrUnauthorizedAccess struct {
	error
}

func (e *ErrUnauthorizedAccess) Unwrap() error { return e.error }

func NewErrUnauthorized(actorID string, resourceType string, id uuid.UUID) *ErrUnauthorizedAccess {
	return &ErrUnauthorizedAccess{fmt.Errorf("%w: %s may not access %s %s", ErrUnauthorized, actorID, resourceType, id)}
}

func NewErrAdminRequired(actorID string) *ErrUnauthorizedAccess {
	return &ErrUnauthorizedAccess{fmt.Errorf("%w: %s is not an administrator", ErrUnauthorized, actorID)}
}

type ErrResourceNotFound struct {
	error
}

func (e *ErrResourceNotFound) Unwrap() error { return e.error }

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%w: %s %s", ErrNotFound, resourceType, id)}
}

func NewErrDocumentNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "document")
}

func NewErrAccountNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "account")
}

func NewErrPaymentProofNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "payment proof")
}

func NewErrPackageNotFound(code string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%w: package %s", ErrNotFound, code)}
}

func NewErrJobNotFound(jobID string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%w: engine job %s", ErrNotFound, jobID)}
}

// ErrInvalidTransition is returned when the current status does not allow the requested operation.
type ErrInvalidTransition struct {
	error
}

func (e *ErrInvalidTransition) Unwrap() error { return e.error }

func NewErrInvalidState(resourceType string, id uuid.UUID, status string, operation string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("%w: cannot %s %s %s in status %s", ErrInvalidState, operation, resourceType, id, status)}
}

func NewErrJobAlreadyInFlight(id uuid.UUID, status string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("%w: document %s is %s", ErrJobAlreadyInFlight, id, status)}
}

func NewErrAlreadyDecided(id uuid.UUID, status string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("%w: proof %s is %s", ErrAlreadyDecided, id, status)}
}

func NewErrAlreadyCompleted(what string, id uuid.UUID) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("%w: %s for account %s", ErrAlreadyCompleted, what, id)}
}

type ErrDuplicate struct {
	error
}

func (e *ErrDuplicate) Unwrap() error { return e.error }

func NewErrDuplicateSubmission(accountID uuid.UUID, proofID uuid.UUID) *ErrDuplicate {
	return &ErrDuplicate{fmt.Errorf("%w: account %s already has pending payment proof %s", ErrDuplicateSubmission, accountID, proofID)}
}

type ErrConcurrentUpdate struct {
	error
}

func (e *ErrConcurrentUpdate) Unwrap() error { return e.error }

// ErrValidation carries a rejected input: a missing rejection reason, an unusable document or a bad form.
type ErrValidation struct {
	error
}

func (e *ErrValidation) Unwrap() error { return e.error }

func NewErrMissingReason() *ErrValidation {
	return &ErrValidation{fmt.Errorf("%w: a rejection reason is required", ErrMissingReason)}
}

func NewErrInvalidDocument(id uuid.UUID, reason string) *ErrValidation {
	return &ErrValidation{fmt.Errorf("%w: document %s: %s", ErrInvalidDocument, id, reason)}
}

func NewErrInvalidForm(err error) *ErrValidation {
	return &ErrValidation{fmt.Errorf("bad request: %w", err)}
}

type ErrAccountNotActive struct {
	error
}

func (e *ErrAccountNotActive) Unwrap() error { return e.error }

func NewErrAccountInactive(ownerID string) *ErrAccountNotActive {
	return &ErrAccountNotActive{fmt.Errorf("%w: the subscription of %s is not active", ErrAccountInactive, ownerID)}
}

// ErrEngine reports a failed interaction with the processing engine.
type ErrEngine struct {
	error
}

func (e *ErrEngine) Unwrap() error { return e.error }

func NewErrEngineUnreachable(cause error) *ErrEngine {
	return &ErrEngine{fmt.Errorf("%w: %s", ErrEngineUnreachable, cause)}
}

func NewErrEngineRejected(cause error) *ErrEngine {
	return &ErrEngine{fmt.Errorf("%w: %s", ErrEngineRejected, cause)}
}
