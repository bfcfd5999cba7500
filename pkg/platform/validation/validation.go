// Package validation wraps go-playground/validator so request DTOs can declare
// their rules as struct tags and still return domain errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	dErrors "renewals/pkg/domain-errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names rather than Go field names.
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates v against its `validate` tags. The first failing field is
// reported as a CodeValidation error.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}
	return dErrors.New(dErrors.CodeValidation, message(verrs[0]))
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "base64":
		return field + " must be a valid base64 encoded string"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "ip":
		return field + " must contain valid IP addresses"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
