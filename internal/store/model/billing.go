package model

import (
	"time"

	"github.com/google/uuid"
)

type Package struct {
	ID           uuid.UUID `gorm:"primaryKey;"`
	Code         string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Price        int64     `gorm:"not null"`
	ValidityDays int       `gorm:"not null"`
	Active       bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

type PackageList []Package

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "PENDING"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
)

type Subscription struct {
	ID        uuid.UUID          `gorm:"primaryKey;"`
	AccountID uuid.UUID          `gorm:"index;not null"`
	PackageID uuid.UUID          `gorm:"not null"`
	Status    SubscriptionStatus `gorm:"index;not null"`
	StartDate *time.Time
	EndDate   *time.Time
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64 `gorm:"not null;default:1"`
}

type SubscriptionList []Subscription

// Effective reports whether the subscription grants access at the given instant.
func (s Subscription) Effective(now time.Time) bool {
	return s.Status == SubscriptionActive && s.EndDate != nil && now.Before(*s.EndDate)
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentVerified PaymentStatus = "VERIFIED"
	PaymentRejected PaymentStatus = "REJECTED"
)

type PaymentProof struct {
	ID              uuid.UUID     `gorm:"primaryKey;"`
	AccountID       uuid.UUID     `gorm:"index;not null"`
	SubscriptionID  uuid.UUID     `gorm:"index;not null"`
	PackageID       uuid.UUID     `gorm:"not null"`
	Status          PaymentStatus `gorm:"index;not null"`
	Amount          int64
	Method          string
	PayerName       string
	ProofRef        string
	TransactionDate *time.Time
	SubmittedAt     time.Time
	DecidedAt       *time.Time
	DecidedBy       *string
	RejectionReason *string
	AdminNotes      *string
	Version         int64 `gorm:"not null;default:1"`
}

type PaymentProofList []PaymentProof
