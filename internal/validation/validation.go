// Package validation checks API request payloads and reports the first problem
// as a client error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a request that cannot be processed as sent.
type Error struct {
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Missing reports an absent required field.
func Missing(field string) *Error {
	return &Error{Field: field, Message: "Missing required field: " + field}
}

// Invalid reports a field with an unusable value.
func Invalid(field string, cause error) *Error {
	msg := "Invalid field: " + field
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{Field: field, Message: msg, Cause: cause}
}

// Malformed reports a body that is not the expected JSON document.
func Malformed(cause error) *Error {
	return &Error{Message: "Invalid JSON body: " + cause.Error(), Cause: cause}
}

// IsValidation reports whether err is a client error.
func IsValidation(err error) bool {
	var v *Error
	return errors.As(err, &v)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s with its `validate` tags and converts the first failure
// to an *Error named after the JSON field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate request: %w", err)
	}

	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return Missing(fe.Field())
	}
	return &Error{
		Field:   fe.Field(),
		Message: fmt.Sprintf("Invalid field: %s (%s)", fe.Field(), fe.Tag()),
		Cause:   err,
	}
}
