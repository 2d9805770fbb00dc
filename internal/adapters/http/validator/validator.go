// Package validator
package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator interface {
	// Validate returns field errors keyed by the field's json name. An empty
	// map means data is valid.
	Validate(data any) map[string]string
}

type DefaultValidator struct {
	validate *validator.Validate
}

func NewValidator() Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	return &DefaultValidator{validate: v}
}

func (v *DefaultValidator) Validate(data any) map[string]string {
	err := v.validate.Struct(data)
	if err == nil {
		return map[string]string{}
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{
			"_error": "invalid request",
		}
	}

	errors := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errors[e.Field()] = messageFor(e)
	}

	return errors
}

func messageFor(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", e.Field())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", e.Field(), strings.ToLower(e.Param()))
	}

	return fmt.Sprintf("%s is invalid", e.Field())
}
