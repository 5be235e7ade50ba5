// Package validate wraps go-playground/validator for request bodies. Field
// names in messages use the json tag, matching what clients send.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the process-wide validator.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name = f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates v and returns an error whose message names the first
// offending field.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return &Error{Fields: verrs}
}

// Var validates a single value against tag.
func Var(v any, tag string) error {
	return Validator().Var(v, tag)
}

// Error describes failed field validations.
type Error struct {
	Fields validator.ValidationErrors
}

func (e *Error) Error() string {
	f := e.Fields[0]
	switch f.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", f.Field())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", f.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f.Field(), f.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", f.Field(), f.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", f.Field(), f.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", f.Field(), f.Tag())
	}
}

// Missing reports whether any failure is a missing required field.
func (e *Error) Missing() bool {
	for _, f := range e.Fields {
		if f.Tag() == "required" {
			return true
		}
	}
	return false
}
