package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Subscription interface {
	List(ctx context.Context, filter *SubscriptionQueryFilter) (model.SubscriptionList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	// Current returns the most recently created subscription of the account.
	Current(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error)
	Create(ctx context.Context, subscription model.Subscription) (*model.Subscription, error)
	Update(ctx context.Context, subscription model.Subscription) (*model.Subscription, error)
	InitialMigration(context.Context) error
}

type SubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) Subscription {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.Subscription{})
}

func (s *SubscriptionStore) List(ctx context.Context, filter *SubscriptionQueryFilter) (model.SubscriptionList, error) {
	var subscriptions model.SubscriptionList
	tx := s.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&subscriptions).Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	subscription := &model.Subscription{}
	if err := s.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(subscription).Error; err != nil {
		return nil, translate(err)
	}
	return subscription, nil
}

func (s *SubscriptionStore) Current(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	subscription := &model.Subscription{}
	if err := s.getDB(ctx).WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		First(subscription).Error; err != nil {
		return nil, translate(err)
	}
	return subscription, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, subscription model.Subscription) (*model.Subscription, error) {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	if subscription.Status == "" {
		subscription.Status = model.SubscriptionPending
	}
	subscription.Version = 1

	if err := s.getDB(ctx).WithContext(ctx).Create(&subscription).Error; err != nil {
		return nil, translate(err)
	}
	return &subscription, nil
}

func (s *SubscriptionStore) Update(ctx context.Context, subscription model.Subscription) (*model.Subscription, error) {
	expected := subscription.Version
	subscription.Version = expected + 1

	if err := updateVersioned(s.getDB(ctx).WithContext(ctx), &subscription, subscription.ID, expected); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (s *SubscriptionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
