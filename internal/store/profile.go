package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Profile interface {
	Create(ctx context.Context, profile model.Profile) (*model.Profile, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*model.Profile, error)
}

type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) Profile {
	return &ProfileStore{db: db}
}

// Create fails with ErrDuplicateKey when the account already has a profile.
func (p *ProfileStore) Create(ctx context.Context, profile model.Profile) (*model.Profile, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if err := p.getDB(ctx).WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (p *ProfileStore) GetByAccount(ctx context.Context, accountID uuid.UUID) (*model.Profile, error) {
	profile := &model.Profile{}
	if err := p.getDB(ctx).WithContext(ctx).Where("account_id = ?", accountID).First(profile).Error; err != nil {
		return nil, translate(err)
	}
	return profile, nil
}

func (p *ProfileStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db
}
