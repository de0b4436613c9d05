// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package validation provides request struct validation using
// go-playground/validator v10 behind a thread-safe singleton, with
// custom validators for invitation codes, wizard slugs and server
// types, and error translation into the API error envelope shape.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	// Invitation codes: 4-32 chars, upper-case letters and digits, as
	// generated by the invitation service. Admin-chosen codes must fit
	// the same alphabet so they survive URL paths untouched.
	inviteCodeRe = regexp.MustCompile(`^[A-Z0-9]{4,32}$`)

	// Wizard slugs: lower-case, digits and hyphens, no leading/trailing
	// hyphen.
	slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// ValidationError is a single field failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

func (e *ValidationError) Field() string      { return e.field }
func (e *ValidationError) Tag() string        { return e.tag }
func (e *ValidationError) Param() string      { return e.param }
func (e *ValidationError) Value() interface{} { return e.value }
func (e *ValidationError) Error() string      { return e.message }

// RequestValidationError is the collection returned by ValidateStruct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field failures.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.errors))
	for i, err := range ve.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Details returns a map suitable for the API error details field.
func (ve *RequestValidationError) Details() map[string]interface{} {
	if len(ve.errors) == 1 {
		e := ve.errors[0]
		return map[string]interface{}{
			"field": e.field,
			"tag":   e.tag,
		}
	}
	fields := make([]map[string]interface{}, len(ve.errors))
	for i, e := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   e.field,
			"tag":     e.tag,
			"message": e.message,
		}
	}
	return map[string]interface{}{"fields": fields}
}

// GetValidator returns the singleton validator, initializing it with the
// custom validators on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// These never return errors for non-nil funcs; ignore like the
		// library examples do.
		_ = validate.RegisterValidation("invite_code", func(fl validator.FieldLevel) bool {
			return inviteCodeRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("wizard_slug", func(fl validator.FieldLevel) bool {
			return slugRe.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates a request struct. Returns nil on success.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []ValidationError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	out := make([]ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translateError(fe),
		}
	}
	return &RequestValidationError{errors: out}
}

var errorMessageTemplates = map[string]string{
	"required":    "%s is required",
	"email":       "%s must be a valid email address",
	"url":         "%s must be a valid URL",
	"uuid":        "%s must be a valid UUID",
	"invite_code": "%s must be 4-32 upper-case letters or digits",
	"wizard_slug": "%s must be a lower-case URL slug",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
}
