package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Package interface {
	List(ctx context.Context, activeOnly bool) (model.PackageList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Package, error)
	GetByCode(ctx context.Context, code string) (*model.Package, error)
	Create(ctx context.Context, pkg model.Package) (*model.Package, error)
	// Upsert creates the package or refreshes the catalog fields of the one with the same code.
	Upsert(ctx context.Context, pkg model.Package) error
	InitialMigration(context.Context) error
}

type PackageStore struct {
	db *gorm.DB
}

func NewPackageStore(db *gorm.DB) Package {
	return &PackageStore{db: db}
}

func (p *PackageStore) InitialMigration(ctx context.Context) error {
	return p.getDB(ctx).AutoMigrate(&model.Package{})
}

func (p *PackageStore) List(ctx context.Context, activeOnly bool) (model.PackageList, error) {
	var packages model.PackageList
	tx := p.getDB(ctx).WithContext(ctx)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	if err := tx.Order("price").Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}

func (p *PackageStore) Get(ctx context.Context, id uuid.UUID) (*model.Package, error) {
	pkg := &model.Package{}
	if err := p.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(pkg).Error; err != nil {
		return nil, translate(err)
	}
	return pkg, nil
}

func (p *PackageStore) GetByCode(ctx context.Context, code string) (*model.Package, error) {
	pkg := &model.Package{}
	if err := p.getDB(ctx).WithContext(ctx).Where("code = ?", code).First(pkg).Error; err != nil {
		return nil, translate(err)
	}
	return pkg, nil
}

func (p *PackageStore) Create(ctx context.Context, pkg model.Package) (*model.Package, error) {
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	if err := p.getDB(ctx).WithContext(ctx).Create(&pkg).Error; err != nil {
		return nil, translate(err)
	}
	return &pkg, nil
}

func (p *PackageStore) Upsert(ctx context.Context, pkg model.Package) error {
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	return p.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "price", "validity_days"}),
	}).Create(&pkg).Error
}

func (p *PackageStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db
}
