package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Account interface {
	List(ctx context.Context, filter *AccountQueryFilter) (model.AccountList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetByOwner(ctx context.Context, ownerID string) (*model.Account, error)
	Create(ctx context.Context, account model.Account) (*model.Account, error)
	Update(ctx context.Context, account model.Account) (*model.Account, error)
	CountByStatus(ctx context.Context) (map[model.AccountStatus]int64, error)
	InitialMigration(context.Context) error
}

type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) Account {
	return &AccountStore{db: db}
}

func (a *AccountStore) InitialMigration(ctx context.Context) error {
	return a.getDB(ctx).AutoMigrate(&model.Account{}, &model.Profile{})
}

func (a *AccountStore) List(ctx context.Context, filter *AccountQueryFilter) (model.AccountList, error) {
	var accounts model.AccountList
	tx := a.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&accounts).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (a *AccountStore) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account := &model.Account{}
	if err := a.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(account).Error; err != nil {
		return nil, translate(err)
	}
	return account, nil
}

func (a *AccountStore) GetByOwner(ctx context.Context, ownerID string) (*model.Account, error) {
	account := &model.Account{}
	if err := a.getDB(ctx).WithContext(ctx).Where("owner_id = ?", ownerID).First(account).Error; err != nil {
		return nil, translate(err)
	}
	return account, nil
}

func (a *AccountStore) Create(ctx context.Context, account model.Account) (*model.Account, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.Status == "" {
		account.Status = model.AccountPendingProfile
	}
	account.Version = 1

	if err := a.getDB(ctx).WithContext(ctx).Create(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (a *AccountStore) Update(ctx context.Context, account model.Account) (*model.Account, error) {
	expected := account.Version
	account.Version = expected + 1

	if err := updateVersioned(a.getDB(ctx).WithContext(ctx), &account, account.ID, expected); err != nil {
		return nil, err
	}
	return &account, nil
}

func (a *AccountStore) CountByStatus(ctx context.Context) (map[model.AccountStatus]int64, error) {
	var rows []struct {
		Status model.AccountStatus
		Total  int64
	}
	if err := a.getDB(ctx).WithContext(ctx).Model(&model.Account{}).Select("status, count(*) as total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.AccountStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (a *AccountStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return a.db
}
