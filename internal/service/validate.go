package service

import (
	"github.com/go-playground/validator/v10"
)

var formValidator = validator.New()

func validateForm(form any) error {
	if err := formValidator.Struct(form); err != nil {
		return NewErrInvalidForm(err)
	}
	return nil
}
