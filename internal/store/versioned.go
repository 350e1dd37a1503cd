package store

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// updateVersioned writes every column of entity when the stored version equals expected.
// The caller bumps the version on entity before calling.
func updateVersioned[T any](tx *gorm.DB, entity *T, id uuid.UUID, expected int64) error {
	res := tx.Model(entity).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(entity)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrRecordNotFound
	}
	return ErrStaleState
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return err
	}
}
