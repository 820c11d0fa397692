// Package errors provides the error types returned by the analyzer's outer layers.
//
// The pricing and strategy engine never returns errors; everything here is
// raised while reading user input, config files, templates or option chains.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidLeg        = errors.New("invalid option leg")
	ErrUnknownStrategy   = errors.New("unknown strategy template")
	ErrContractNotFound  = errors.New("no quoted contract near strike")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrInputValidation   = errors.New("input validation failed")
	ErrInvalidExpression = errors.New("invalid strike expression")
	ErrChainFormat       = errors.New("malformed option chain")
	ErrDuplicateTemplate = errors.New("duplicate strategy template")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// TemplateError is raised while loading or resolving a strategy template.
// Leg is the zero-based leg index, or -1 when the error concerns the whole template.
type TemplateError struct {
	Template string
	Leg      int
	Err      error
}

func (e *TemplateError) Error() string {
	if e.Leg < 0 {
		return fmt.Sprintf("template error [%s]: %v", e.Template, e.Err)
	}
	return fmt.Sprintf("template error [%s] leg %d: %v", e.Template, e.Leg+1, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// NewTemplateError creates a new TemplateError.
func NewTemplateError(template string, leg int, err error) *TemplateError {
	return &TemplateError{
		Template: template,
		Leg:      leg,
		Err:      err,
	}
}

// ChainError represents a problem with a quoted option chain.
type ChainError struct {
	Source  string
	Line    int
	Message string
	Err     error
}

func (e *ChainError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("chain error [%s]: %s: %v", loc, e.Message, e.Err)
	}
	return fmt.Sprintf("chain error [%s]: %s", loc, e.Message)
}

func (e *ChainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrChainFormat
}

// NewChainError creates a new ChainError.
func NewChainError(source string, line int, message string, err error) *ChainError {
	return &ChainError{
		Source:  source,
		Line:    line,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines several errors into one; nil entries are dropped.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
