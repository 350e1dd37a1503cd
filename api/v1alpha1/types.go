// Package v1alpha1 holds the request and response bodies of the paperlane HTTP API.
package v1alpha1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}

type Health struct {
	Status string `json:"status"`
}

type DocumentCreate struct {
	FileName     string  `json:"fileName" validate:"required,max=255"`
	FileRef      string  `json:"fileRef" validate:"required,file_ref"`
	ReferenceRef *string `json:"referenceRef,omitempty" validate:"omitempty,file_ref"`
	Strategy     *string `json:"strategy,omitempty" validate:"omitempty,strategy"`
}

type Document struct {
	Id              uuid.UUID  `json:"id"`
	OwnerId         string     `json:"ownerId"`
	FileName        string     `json:"fileName"`
	Status          string     `json:"status"`
	Strategy        string     `json:"strategy,omitempty"`
	JobId           *string    `json:"jobId,omitempty"`
	ProgressPercent int        `json:"progressPercent"`
	ProgressMessage string     `json:"progressMessage,omitempty"`
	ErrorDetail     *string    `json:"errorDetail,omitempty"`
	Attempts        int        `json:"attempts"`
	JobStartedAt    *time.Time `json:"jobStartedAt,omitempty"`
	JobCompletedAt  *time.Time `json:"jobCompletedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type DocumentList []Document

type AnalysisSave struct {
	Summary json.RawMessage `json:"summary" validate:"required"`
}

type ProcessRequest struct {
	Strategy *string `json:"strategy,omitempty" validate:"omitempty,strategy"`
}

type ProcessingResult struct {
	Id                    uuid.UUID `json:"id"`
	JobId                 string    `json:"jobId"`
	Status                string    `json:"status"`
	Strategy              string    `json:"strategy,omitempty"`
	OutputArtifactRef     string    `json:"outputArtifactRef,omitempty"`
	FlagsRemoved          int       `json:"flagsRemoved"`
	SuccessRate           float64   `json:"successRate"`
	ProcessingTimeSeconds float64   `json:"processingTimeSeconds"`
	FileSize              int64     `json:"fileSize"`
	ErrorDetail           *string   `json:"errorDetail,omitempty"`
	CompletedAt           time.Time `json:"completedAt"`
}

type ProcessStatus struct {
	Document          Document          `json:"document"`
	Result            *ProcessingResult `json:"result,omitempty"`
	EngineState       string            `json:"engineState,omitempty"`
	EngineUnavailable bool              `json:"engineUnavailable"`
}

type AccountCreate struct {
	// OwnerId defaults to the caller. Only administrators may register someone else.
	OwnerId *string `json:"ownerId,omitempty"`
}

type Account struct {
	Id              uuid.UUID `json:"id"`
	OwnerId         string    `json:"ownerId"`
	Status          string    `json:"status"`
	IsActive        bool      `json:"isActive"`
	SuspendedReason *string   `json:"suspendedReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ProfileCreate struct {
	FullName    string `json:"fullName" validate:"required,max=255"`
	Phone       string `json:"phone" validate:"required,phone"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Institution string `json:"institution,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
}

type Profile struct {
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Institution string `json:"institution,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
}

type Package struct {
	Id           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Price        int64     `json:"price"`
	ValidityDays int       `json:"validityDays"`
}

type PackageList []Package

type Subscription struct {
	Id        uuid.UUID  `json:"id"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type PaymentCreate struct {
	PackageCode     string     `json:"packageCode" validate:"required,package_code"`
	Amount          int64      `json:"amount,omitempty" validate:"gte=0"`
	Method          string     `json:"method" validate:"required,max=64"`
	PayerName       string     `json:"payerName" validate:"required,max=255"`
	ProofRef        string     `json:"proofRef" validate:"required,file_ref"`
	TransactionDate *time.Time `json:"transactionDate,omitempty"`
}

type PaymentProof struct {
	Id              uuid.UUID  `json:"id"`
	AccountId       uuid.UUID  `json:"accountId"`
	SubscriptionId  uuid.UUID  `json:"subscriptionId"`
	Status          string     `json:"status"`
	Amount          int64      `json:"amount"`
	Method          string     `json:"method"`
	PayerName       string     `json:"payerName"`
	ProofRef        string     `json:"proofRef"`
	TransactionDate *time.Time `json:"transactionDate,omitempty"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	DecidedBy       *string    `json:"decidedBy,omitempty"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	AdminNotes      *string    `json:"adminNotes,omitempty"`
}

type AccountStatus struct {
	Account        Account       `json:"account"`
	Profile        *Profile      `json:"profile,omitempty"`
	Subscription   *Subscription `json:"subscription,omitempty"`
	Package        *Package      `json:"package,omitempty"`
	PendingPayment *PaymentProof `json:"pendingPayment,omitempty"`
	Active         bool          `json:"active"`
	NextStep       string        `json:"nextStep"`
}

type PaymentReview struct {
	Proof   PaymentProof `json:"proof"`
	Account Account      `json:"account"`
	Profile *Profile     `json:"profile,omitempty"`
	Package *Package     `json:"package,omitempty"`
}

type PaymentReviewList []PaymentReview

type PaymentDecision struct {
	Decision string  `json:"decision" validate:"required,oneof=VERIFY REJECT"`
	Reason   string  `json:"reason,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type SuspendRequest struct {
	Reason string `json:"reason" validate:"max=1024"`
}

// EngineCallback is what the engine posts when a job changes state. It is only a hint: the
// job status is always fetched again from the engine.
type EngineCallback struct {
	JobId  string `json:"job_id,omitempty" validate:"required_without=TaskId"`
	TaskId string `json:"task_id,omitempty" validate:"required_without=JobId"`
	State  string `json:"state,omitempty"`
}

func (c EngineCallback) ID() string {
	if c.JobId != "" {
		return c.JobId
	}
	return c.TaskId
}
