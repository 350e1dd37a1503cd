package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Document interface {
	List(ctx context.Context, filter *DocumentQueryFilter, opts *DocumentQueryOptions) (model.DocumentList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	GetByJobID(ctx context.Context, jobID string) (*model.Document, error)
	Create(ctx context.Context, document model.Document) (*model.Document, error)
	// Update persists document if its version still matches the stored one and returns it with the new version.
	Update(ctx context.Context, document model.Document) (*model.Document, error)
	CountByStatus(ctx context.Context) (map[model.DocumentStatus]int64, error)
	InitialMigration(context.Context) error
}

type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) Document {
	return &DocumentStore{db: db}
}

func (d *DocumentStore) InitialMigration(ctx context.Context) error {
	return d.getDB(ctx).AutoMigrate(&model.Document{})
}

func (d *DocumentStore) List(ctx context.Context, filter *DocumentQueryFilter, opts *DocumentQueryOptions) (model.DocumentList, error) {
	var documents model.DocumentList
	tx := d.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&documents).Find(&documents).Error; err != nil {
		return nil, err
	}

	return documents, nil
}

func (d *DocumentStore) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	document := &model.Document{}
	if err := d.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(document).Error; err != nil {
		return nil, translate(err)
	}
	return document, nil
}

func (d *DocumentStore) GetByJobID(ctx context.Context, jobID string) (*model.Document, error) {
	document := &model.Document{}
	if err := d.getDB(ctx).WithContext(ctx).Where("external_job_id = ?", jobID).First(document).Error; err != nil {
		return nil, translate(err)
	}
	return document, nil
}

func (d *DocumentStore) Create(ctx context.Context, document model.Document) (*model.Document, error) {
	if document.ID == uuid.Nil {
		document.ID = uuid.New()
	}
	if document.Status == "" {
		document.Status = model.DocumentPending
	}
	document.Version = 1

	if err := d.getDB(ctx).WithContext(ctx).Create(&document).Error; err != nil {
		return nil, translate(err)
	}
	return &document, nil
}

func (d *DocumentStore) Update(ctx context.Context, document model.Document) (*model.Document, error) {
	expected := document.Version
	document.Version = expected + 1

	if err := updateVersioned(d.getDB(ctx).WithContext(ctx), &document, document.ID, expected); err != nil {
		return nil, err
	}
	return &document, nil
}

func (d *DocumentStore) CountByStatus(ctx context.Context) (map[model.DocumentStatus]int64, error) {
	var rows []struct {
		Status model.DocumentStatus
		Total  int64
	}
	if err := d.getDB(ctx).WithContext(ctx).Model(&model.Document{}).Select("status, count(*) as total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.DocumentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (d *DocumentStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return d.db
}
