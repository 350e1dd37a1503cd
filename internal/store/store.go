package store

import (
	"context"

	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Document() Document
	Result() Result
	Account() Account
	Profile() Profile
	Package() Package
	Payment() Payment
	Subscription() Subscription
	Activity() Activity
	InitialMigration(ctx context.Context) error
	Seed(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db           *gorm.DB
	document     Document
	result       Result
	account      Account
	profile      Profile
	pkg          Package
	payment      Payment
	subscription Subscription
	activity     Activity
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		document:     NewDocumentStore(db),
		result:       NewResultStore(db),
		account:      NewAccountStore(db),
		profile:      NewProfileStore(db),
		pkg:          NewPackageStore(db),
		payment:      NewPaymentStore(db),
		subscription: NewSubscriptionStore(db),
		activity:     NewActivityStore(db),
		db:           db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Document() Document {
	return s.document
}

func (s *DataStore) Result() Result {
	return s.result
}

func (s *DataStore) Account() Account {
	return s.account
}

func (s *DataStore) Profile() Profile {
	return s.profile
}

func (s *DataStore) Package() Package {
	return s.pkg
}

func (s *DataStore) Payment() Payment {
	return s.payment
}

func (s *DataStore) Subscription() Subscription {
	return s.subscription
}

func (s *DataStore) Activity() Activity {
	return s.activity
}

// InitialMigration creates the schema with gorm. Postgres deployments use the goose migrations instead.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	migrators := []interface{ InitialMigration(context.Context) error }{
		s.document, s.result, s.account, s.pkg, s.payment, s.subscription, s.activity,
	}
	for _, m := range migrators {
		if err := m.InitialMigration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPackages is the catalog installed by Seed.
var DefaultPackages = []model.Package{
	{Code: "PROPOSAL", Name: "Proposal", Price: 50000, ValidityDays: 30, Active: true},
	{Code: "HASIL", Name: "Hasil", Price: 75000, ValidityDays: 30, Active: true},
	{Code: "TUTUP", Name: "Tutup", Price: 100000, ValidityDays: 60, Active: true},
}

func (s *DataStore) Seed(ctx context.Context) error {
	ctx, err := s.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = Rollback(ctx)
	}()

	for _, pkg := range DefaultPackages {
		if err := s.pkg.Upsert(ctx, pkg); err != nil {
			return err
		}
	}

	_, err = Commit(ctx)
	return err
}

func (s *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
