package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Result interface {
	Create(ctx context.Context, result model.ProcessingResult) (*model.ProcessingResult, error)
	// GetByJob returns the result recorded for one engine job of a document.
	GetByJob(ctx context.Context, documentID uuid.UUID, jobID string) (*model.ProcessingResult, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) (model.ProcessingResultList, error)
	InitialMigration(context.Context) error
}

type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(db *gorm.DB) Result {
	return &ResultStore{db: db}
}

func (r *ResultStore) InitialMigration(ctx context.Context) error {
	return r.getDB(ctx).AutoMigrate(&model.ProcessingResult{})
}

func (r *ResultStore) Create(ctx context.Context, result model.ProcessingResult) (*model.ProcessingResult, error) {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if err := r.getDB(ctx).WithContext(ctx).Create(&result).Error; err != nil {
		return nil, translate(err)
	}
	return &result, nil
}

func (r *ResultStore) GetByJob(ctx context.Context, documentID uuid.UUID, jobID string) (*model.ProcessingResult, error) {
	result := &model.ProcessingResult{}
	if err := r.getDB(ctx).WithContext(ctx).
		Where("document_id = ? AND external_job_id = ?", documentID, jobID).
		First(result).Error; err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func (r *ResultStore) ListByDocument(ctx context.Context, documentID uuid.UUID) (model.ProcessingResultList, error) {
	var results model.ProcessingResultList
	if err := r.getDB(ctx).WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("completed_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ResultStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return r.db
}
