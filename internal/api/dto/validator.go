package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// Validator wraps go-playground/validator and reports the first failing field.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports json field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates req using its struct tags.
func (v *Validator) Struct(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidationError(fe.Field()+" failed on '"+fe.Tag()+"' validation", map[string]any{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	return apperrors.NewValidationError("invalid payload", nil)
}
