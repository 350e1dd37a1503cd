package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrInvalidForm struct {
	error
}

func NewErrInvalidForm(format string, args ...any) *ErrInvalidForm {
	return &ErrInvalidForm{fmt.Errorf(format, args...)}
}

// Describe turns validation errors into one readable line naming each offending field.
func Describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewErrInvalidForm("%s", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return NewErrInvalidForm("invalid request: %s", strings.Join(parts, "; "))
}
