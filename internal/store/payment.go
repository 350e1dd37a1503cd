package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
)

type Payment interface {
	List(ctx context.Context, filter *PaymentQueryFilter) (model.PaymentProofList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.PaymentProof, error)
	Create(ctx context.Context, proof model.PaymentProof) (*model.PaymentProof, error)
	Update(ctx context.Context, proof model.PaymentProof) (*model.PaymentProof, error)
	InitialMigration(context.Context) error
}

type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) Payment {
	return &PaymentStore{db: db}
}

func (p *PaymentStore) InitialMigration(ctx context.Context) error {
	return p.getDB(ctx).AutoMigrate(&model.PaymentProof{})
}

func (p *PaymentStore) List(ctx context.Context, filter *PaymentQueryFilter) (model.PaymentProofList, error) {
	var proofs model.PaymentProofList
	tx := p.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&proofs).Order("submitted_at").Find(&proofs).Error; err != nil {
		return nil, err
	}
	return proofs, nil
}

func (p *PaymentStore) Get(ctx context.Context, id uuid.UUID) (*model.PaymentProof, error) {
	proof := &model.PaymentProof{}
	if err := p.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(proof).Error; err != nil {
		return nil, translate(err)
	}
	return proof, nil
}

func (p *PaymentStore) Create(ctx context.Context, proof model.PaymentProof) (*model.PaymentProof, error) {
	if proof.ID == uuid.Nil {
		proof.ID = uuid.New()
	}
	if proof.Status == "" {
		proof.Status = model.PaymentPending
	}
	proof.Version = 1

	if err := p.getDB(ctx).WithContext(ctx).Create(&proof).Error; err != nil {
		return nil, translate(err)
	}
	return &proof, nil
}

func (p *PaymentStore) Update(ctx context.Context, proof model.PaymentProof) (*model.PaymentProof, error) {
	expected := proof.Version
	proof.Version = expected + 1

	if err := updateVersioned(p.getDB(ctx).WithContext(ctx), &proof, proof.ID, expected); err != nil {
		return nil, err
	}
	return &proof, nil
}

func (p *PaymentStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db
}
