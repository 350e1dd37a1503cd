package model

import (
	"time"

	"github.com/google/uuid"
)

// Activity is an audit entry. Rows are only ever inserted.
type Activity struct {
	ID         uuid.UUID `gorm:"primaryKey;"`
	ActorID    string    `gorm:"index;not null"`
	Action     string    `gorm:"index;not null"`
	Resource   string    `gorm:"not null"`
	ResourceID string    `gorm:"index;not null"`
	FromStatus string
	ToStatus   string
	Details    []byte `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

type ActivityList []Activity
