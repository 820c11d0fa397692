package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"options-lab/internal/errors"
)

// Envelope is the body of every API response except /health.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Success sends HTTP 200 with code 0.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Msg: "success", Data: data})
}

// Error maps err to an HTTP status and sends it. Validation failures carry
// the offending fields in data.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	_ = c.Error(err)

	env := Envelope{Code: status, Msg: err.Error()}
	if fields := fieldErrors(err); len(fields) > 0 {
		env.Msg = "input validation failed"
		env.Data = gin.H{"fields": fields}
	}
	if status == http.StatusInternalServerError {
		env.Msg = "internal error"
	}
	c.AbortWithStatusJSON(status, env)
}

// StatusOf maps the error taxonomy to HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrInputValidation),
		errors.Is(err, errors.ErrInvalidLeg),
		errors.Is(err, errors.ErrInvalidExpression):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnknownStrategy):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrContractNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fieldErrors flattens every ValidationError joined into err.
func fieldErrors(err error) []FieldError {
	var out []FieldError
	var walk func(error)
	walk = func(e error) {
		switch v := e.(type) {
		case nil:
		case *errors.ValidationError:
			out = append(out, FieldError{Field: v.Field, Message: v.Message})
		case interface{ Unwrap() []error }:
			for _, inner := range v.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(v.Unwrap())
		}
	}
	walk(err)
	return out
}
