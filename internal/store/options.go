package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByID
	SortByUpdatedTime
	SortByCreatedTime
	SortByCreatedTimeDesc
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

func sortFn(sort SortOrder) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByID:
			return tx.Order("id")
		case SortByUpdatedTime:
			return tx.Order("updated_at")
		case SortByCreatedTime:
			return tx.Order("created_at")
		case SortByCreatedTimeDesc:
			return tx.Order("created_at DESC")
		default:
			return tx
		}
	}
}

func limitFn(limit int) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	}
}

type DocumentQueryFilter BaseQuerier

func NewDocumentQueryFilter() *DocumentQueryFilter {
	return &DocumentQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *DocumentQueryFilter) ByOwner(ownerID string) *DocumentQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner_id = ?", ownerID)
	})
	return qf
}

func (qf *DocumentQueryFilter) ByStatus(statuses ...model.DocumentStatus) *DocumentQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return qf
}

func (qf *DocumentQueryFilter) ByJobID(jobID string) *DocumentQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("external_job_id = ?", jobID)
	})
	return qf
}

// WithJob keeps only documents that were accepted by the engine at least once.
func (qf *DocumentQueryFilter) WithJob() *DocumentQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("external_job_id IS NOT NULL")
	})
	return qf
}

type DocumentQueryOptions BaseQuerier

func NewDocumentQueryOptions() *DocumentQueryOptions {
	return &DocumentQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *DocumentQueryOptions) WithSortOrder(sort SortOrder) *DocumentQueryOptions {
	o.QueryFn = append(o.QueryFn, sortFn(sort))
	return o
}

func (o *DocumentQueryOptions) WithLimit(limit int) *DocumentQueryOptions {
	o.QueryFn = append(o.QueryFn, limitFn(limit))
	return o
}

// InFlightFirst orders documents the engine is still working on before the others.
// It is a plain order column so that later sort options are appended after it.
func (o *DocumentQueryOptions) InFlightFirst() *DocumentQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Order(inFlightOrder)
	})
	return o
}

var inFlightOrder = fmt.Sprintf("CASE WHEN status IN ('%s', '%s') THEN 0 ELSE 1 END",
	model.DocumentAnalyzing, model.DocumentProcessing)

type AccountQueryFilter BaseQuerier

func NewAccountQueryFilter() *AccountQueryFilter {
	return &AccountQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *AccountQueryFilter) ByStatus(statuses ...model.AccountStatus) *AccountQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return qf
}

func (qf *AccountQueryFilter) ByID(ids ...uuid.UUID) *AccountQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id IN ?", ids)
	})
	return qf
}

type PaymentQueryFilter BaseQuerier

func NewPaymentQueryFilter() *PaymentQueryFilter {
	return &PaymentQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *PaymentQueryFilter) ByAccount(accountID uuid.UUID) *PaymentQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("account_id = ?", accountID)
	})
	return qf
}

func (qf *PaymentQueryFilter) ByStatus(statuses ...model.PaymentStatus) *PaymentQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return qf
}

type SubscriptionQueryFilter BaseQuerier

func NewSubscriptionQueryFilter() *SubscriptionQueryFilter {
	return &SubscriptionQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *SubscriptionQueryFilter) ByAccount(accountID uuid.UUID) *SubscriptionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("account_id = ?", accountID)
	})
	return qf
}

func (qf *SubscriptionQueryFilter) ByStatus(statuses ...model.SubscriptionStatus) *SubscriptionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return qf
}

// EndedBy keeps subscriptions whose end date is at or before t.
func (qf *SubscriptionQueryFilter) EndedBy(t time.Time) *SubscriptionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("end_date IS NOT NULL AND end_date <= ?", t)
	})
	return qf
}

type ActivityQueryFilter BaseQuerier

func NewActivityQueryFilter() *ActivityQueryFilter {
	return &ActivityQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *ActivityQueryFilter) ByResource(resource string, id string) *ActivityQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("resource = ? AND resource_id = ?", resource, id)
	})
	return qf
}

func (qf *ActivityQueryFilter) ByAction(action string) *ActivityQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("action = ?", action)
	})
	return qf
}

func (qf *ActivityQueryFilter) ByActor(actorID string) *ActivityQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("actor_id = ?", actorID)
	})
	return qf
}
