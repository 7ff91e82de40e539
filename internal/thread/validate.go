// internal/thread/validate.go
//
// Submission validation.
//
// Context
// -------
// Missing or oversized fields are user errors, not failures.  Validate turns
// go-playground/validator results into []FieldError keyed by the JSON field
// name so the API can answer 422 with a message per field, and Preview can
// return them alongside the projected thread.
//
// Notes
// -----
//   - Titles and bodies are trimmed before validation; a whitespace-only
//     title counts as missing.
//   - Length limits count runes, matching the VARCHAR column semantics.
package thread

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes a single validation failure.
type FieldError struct {
	Name    string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps []FieldError and satisfies the error interface.
type ValidationError struct{ Fields []FieldError }

func (ve *ValidationError) Error() string {
	names := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		names[i] = f.Name
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FieldsOf returns the field errors inside err, if any.
func FieldsOf(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs the struct validator and converts its errors.
func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Name: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value is at least %s.", fe.Param())
	default:
		return "Enter a valid value."
	}
}
