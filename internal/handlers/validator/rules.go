package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewDocumentValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("file_ref", fileRefValidator),
		},
		{
			Rule: registerFn("strategy", strategyValidator),
		},
	}
}

func NewAccountValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("phone", phoneValidator),
		},
	}
}

func NewPaymentValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("package_code", packageCodeValidator),
		},
		{
			Rule: registerFn("file_ref", fileRefValidator),
		},
	}
}
