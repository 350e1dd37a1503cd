package validator

import (
	"path"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	strategyRegex    = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	phoneRegex       = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,19}$`)
	packageCodeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,31}$`)
)

// fileRefValidator accepts storage keys relative to the upload root.
func fileRefValidator(fl validator.FieldLevel) bool {
	val, ok := stringValue(fl)
	if !ok {
		return false
	}
	if val == "" || strings.HasPrefix(val, "/") || strings.Contains(val, `\`) {
		return false
	}
	cleaned := path.Clean(val)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

func strategyValidator(fl validator.FieldLevel) bool {
	val, ok := stringValue(fl)
	if !ok {
		return false
	}
	return strategyRegex.MatchString(val)
}

func phoneValidator(fl validator.FieldLevel) bool {
	val, ok := stringValue(fl)
	if !ok {
		return false
	}
	return phoneRegex.MatchString(strings.TrimSpace(val))
}

func packageCodeValidator(fl validator.FieldLevel) bool {
	val, ok := stringValue(fl)
	if !ok {
		return false
	}
	return packageCodeRegex.MatchString(val)
}

// stringValue reads string and *string fields alike.
func stringValue(fl validator.FieldLevel) (string, bool) {
	switch v := fl.Field().Interface().(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", true
		}
		return *v, true
	default:
		return "", false
	}
}
