package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountPendingProfile      AccountStatus = "PENDING_PROFILE"
	AccountPendingPayment      AccountStatus = "PENDING_PAYMENT"
	AccountPendingVerification AccountStatus = "PENDING_VERIFICATION"
	AccountActive              AccountStatus = "ACTIVE"
	AccountSuspended           AccountStatus = "SUSPENDED"
	AccountExpired             AccountStatus = "EXPIRED"
)

type Account struct {
	ID              uuid.UUID     `gorm:"primaryKey;"`
	OwnerID         string        `gorm:"uniqueIndex;not null"`
	Status          AccountStatus `gorm:"index;not null"`
	IsActive        bool
	SuspendedReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64 `gorm:"not null;default:1"`
}

type AccountList []Account

func (a Account) String() string {
	v, _ := json.Marshal(a)
	return string(v)
}

type Profile struct {
	ID          uuid.UUID `gorm:"primaryKey;"`
	AccountID   uuid.UUID `gorm:"uniqueIndex;not null"`
	FullName    string    `gorm:"not null"`
	Phone       string    `gorm:"not null"`
	Address     string
	City        string
	Institution string
	Purpose     string
	CreatedAt   time.Time
}
