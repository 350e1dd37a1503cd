package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentAnalyzing  DocumentStatus = "ANALYZING"
	DocumentAnalyzed   DocumentStatus = "ANALYZED"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentCompleted  DocumentStatus = "COMPLETED"
	DocumentFailed     DocumentStatus = "FAILED"
)

// InFlight reports whether the engine owns the document right now.
func (s DocumentStatus) InFlight() bool {
	return s == DocumentAnalyzing || s == DocumentProcessing
}

func (s DocumentStatus) Terminal() bool {
	return s == DocumentCompleted || s == DocumentFailed
}

type Document struct {
	ID              uuid.UUID      `gorm:"primaryKey;"`
	OwnerID         string         `gorm:"index;not null"`
	FileName        string         `gorm:"not null"`
	FileRef         string         `gorm:"not null"`
	ReferenceRef    *string
	Strategy        string
	Status          DocumentStatus `gorm:"index;not null"`
	ExternalJobID   *string        `gorm:"index"`
	ProgressPercent int
	ProgressMessage string
	ErrorDetail     *string
	Attempts        int
	Analysis        []byte `gorm:"type:jsonb"`
	JobStartedAt    *time.Time
	JobCompletedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64 `gorm:"not null;default:1"`
}

type DocumentList []Document

func (d Document) String() string {
	v, _ := json.Marshal(d)
	return string(v)
}

func (d Document) JobID() string {
	if d.ExternalJobID == nil {
		return ""
	}
	return *d.ExternalJobID
}
