package model

import (
	"time"

	"github.com/google/uuid"
)

type ResultStatus string

const (
	ResultCompleted ResultStatus = "COMPLETED"
	ResultFailed    ResultStatus = "FAILED"
)

// ProcessingResult is written once per engine job, the first time the job is seen terminal.
type ProcessingResult struct {
	ID                    uuid.UUID    `gorm:"primaryKey;"`
	DocumentID            uuid.UUID    `gorm:"uniqueIndex:results_document_job;not null"`
	ExternalJobID         string       `gorm:"uniqueIndex:results_document_job;not null"`
	StrategyName          string
	Status                ResultStatus `gorm:"not null"`
	OutputArtifactRef     string
	FlagsRemoved          int
	SuccessRate           float64
	ProcessingTimeSeconds float64
	FileSize              int64
	ErrorDetail           *string
	RawResponse           []byte `gorm:"type:jsonb"`
	CompletedAt           time.Time
}

type ProcessingResultList []ProcessingResult
