package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/storefront/backend/internal/domain/shared"
)

var setupValidatorOnce sync.Once

// SetupValidator makes binding errors report JSON field names
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name == "" {
					name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
				}
				return name
			})
		}
	})
}

// BindingError converts a gin binding failure into a validation error
// carrying one FieldError per rejected field. Malformed JSON becomes a
// single "body" field error.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewValidationError("body", "malformed request body", nil)
	}

	fields := make([]shared.FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, shared.FieldError{
			Field:  e.Field(),
			Reason: validationMessage(e),
			Value:  e.Value(),
		})
	}
	return shared.NewValidationErrors(fields)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "len":
		return "must be exactly " + e.Param() + " characters"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
