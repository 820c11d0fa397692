package errors

import (
	"io"
	"strings"
	"testing"
)

func TestValidationError_MatchesSentinel(t *testing.T) {
	err := Wrap(NewValidationError("strike", -5.0, "must be positive"), "leg 1")

	if !Is(err, ErrInputValidation) {
		t.Fatal("wrapped ValidationError should match ErrInputValidation")
	}
	var ve *ValidationError
	if !As(err, &ve) || ve.Field != "strike" {
		t.Fatalf("As() did not recover the ValidationError: %v", err)
	}
	if !strings.Contains(err.Error(), "strike (-5): must be positive") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestTemplateError(t *testing.T) {
	whole := NewTemplateError("wing", -1, ErrDuplicateTemplate)
	if whole.Error() != "template error [wing]: duplicate strategy template" {
		t.Errorf("Error() = %q", whole.Error())
	}

	leg := NewTemplateError("wing", 2, ErrInvalidExpression)
	if !strings.Contains(leg.Error(), "leg 3") {
		t.Errorf("leg index should be one-based: %q", leg.Error())
	}
	if !Is(leg, ErrInvalidExpression) {
		t.Error("TemplateError should unwrap to its cause")
	}
}

func TestChainError(t *testing.T) {
	bare := NewChainError("spy.csv", 4, "bad expiration", nil)
	if !Is(bare, ErrChainFormat) {
		t.Error("ChainError without cause should match ErrChainFormat")
	}
	if bare.Error() != "chain error [spy.csv:4]: bad expiration" {
		t.Errorf("Error() = %q", bare.Error())
	}

	wrapped := NewChainError("spy.csv", 0, "read failed", io.ErrUnexpectedEOF)
	if !strings.HasPrefix(wrapped.Error(), "chain error [spy.csv]:") {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "context") != nil || Wrapf(nil, "context %d", 1) != nil {
		t.Error("wrapping nil should stay nil")
	}
	if Join(nil, nil) != nil {
		t.Error("joining nils should be nil")
	}
}
