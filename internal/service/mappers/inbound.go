package mappers

import (
	"strings"
	"time"

	"github.com/paperlane/paperlane/internal/store/model"
)

// DocumentForm describes a file the upload collaborator has already stored.
type DocumentForm struct {
	FileName     string `validate:"required,max=255"`
	FileRef      string `validate:"required"`
	ReferenceRef *string
	Strategy     string `validate:"omitempty,max=64"`
}

func (f DocumentForm) ToDocument(ownerID string) model.Document {
	doc := model.Document{
		OwnerID:  ownerID,
		FileName: f.FileName,
		FileRef:  f.FileRef,
		Strategy: f.Strategy,
		Status:   model.DocumentPending,
	}
	if f.ReferenceRef != nil && strings.TrimSpace(*f.ReferenceRef) != "" {
		ref := *f.ReferenceRef
		doc.ReferenceRef = &ref
	}
	return doc
}

type ProfileForm struct {
	FullName    string `validate:"required,max=255"`
	Phone       string `validate:"required,max=32"`
	Address     string
	City        string
	Institution string
	Purpose     string
}

func (f ProfileForm) ToProfile(account model.Account) model.Profile {
	return model.Profile{
		AccountID:   account.ID,
		FullName:    strings.TrimSpace(f.FullName),
		Phone:       strings.TrimSpace(f.Phone),
		Address:     f.Address,
		City:        f.City,
		Institution: f.Institution,
		Purpose:     f.Purpose,
	}
}

type PaymentForm struct {
	PackageCode     string `validate:"required"`
	Amount          int64  `validate:"gte=0"`
	Method          string `validate:"required"`
	PayerName       string `validate:"required"`
	ProofRef        string `validate:"required"`
	TransactionDate *time.Time
}

func (f PaymentForm) ToPaymentProof(account model.Account, subscription model.Subscription, pkg model.Package, now time.Time) model.PaymentProof {
	amount := f.Amount
	if amount == 0 {
		amount = pkg.Price
	}
	return model.PaymentProof{
		AccountID:       account.ID,
		SubscriptionID:  subscription.ID,
		PackageID:       pkg.ID,
		Status:          model.PaymentPending,
		Amount:          amount,
		Method:          f.Method,
		PayerName:       f.PayerName,
		ProofRef:        f.ProofRef,
		TransactionDate: f.TransactionDate,
		SubmittedAt:     now,
	}
}

type Decision string

const (
	DecisionVerify Decision = "VERIFY"
	DecisionReject Decision = "REJECT"
)

type DecisionForm struct {
	Decision Decision `validate:"required,oneof=VERIFY REJECT"`
	Reason   string
	Notes    *string
}

// JobFilter narrows the admin job monitor. A zero Limit means the default page size.
type JobFilter struct {
	Statuses []model.DocumentStatus
	OwnerID  string
	Limit    int
}
