package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

// Activity is append-only.
type Activity interface {
	Append(ctx context.Context, activity model.Activity) (*model.Activity, error)
	List(ctx context.Context, filter *ActivityQueryFilter) (model.ActivityList, error)
	InitialMigration(context.Context) error
}

type ActivityStore struct {
	db *gorm.DB
}

func NewActivityStore(db *gorm.DB) Activity {
	return &ActivityStore{db: db}
}

func (a *ActivityStore) InitialMigration(ctx context.Context) error {
	return a.getDB(ctx).AutoMigrate(&model.Activity{})
}

func (a *ActivityStore) Append(ctx context.Context, activity model.Activity) (*model.Activity, error) {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if err := a.getDB(ctx).WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, translate(err)
	}
	return &activity, nil
}

func (a *ActivityStore) List(ctx context.Context, filter *ActivityQueryFilter) (model.ActivityList, error) {
	var activities model.ActivityList
	tx := a.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&activities).Order("created_at").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (a *ActivityStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return a.db
}
