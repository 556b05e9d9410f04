package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestEbasError_Error(t *testing.T) {
	err := New(ErrCategoryLookup, CodeUnknownValue, "component \"foo\" not in dictionary")
	expected := "[LOOKUP:UNKNOWN_VALUE] component \"foo\" not in dictionary"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEbasError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	err := Wrap(ErrCategoryStorage, CodeCorruptBlob, "decode site_index.zst", cause)
	expected := "[STORAGE:CORRUPT_BLOB] decode site_index.zst: unexpected EOF"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEbasError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryAdaptation, CodeExtractFailed, "bad file", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestEbasError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeObjectNotFound, "first")
	err2 := New(ErrCategoryStorage, CodeObjectNotFound, "second")
	err3 := New(ErrCategoryStorage, CodeCorruptBlob, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("db: load: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestCategoryPredicates(t *testing.T) {
	tests := []struct {
		err        error
		adaptation bool
		lookup     bool
		storage    bool
	}{
		{NewAdaptationError(CodeExtractFailed, "x", nil), true, false, false},
		{NewLookupError(CodeUnknownCode, "x"), false, true, false},
		{NewStorageError(CodeReadFailed, "x", nil), false, false, true},
		{fmt.Errorf("wrapped: %w", NewLookupError(CodeUnknownValue, "x")), false, true, false},
		{fmt.Errorf("plain"), false, false, false},
	}

	for _, tt := range tests {
		if IsAdaptation(tt.err) != tt.adaptation {
			t.Errorf("%v: IsAdaptation=%v, want %v", tt.err, IsAdaptation(tt.err), tt.adaptation)
		}
		if IsLookup(tt.err) != tt.lookup {
			t.Errorf("%v: IsLookup=%v, want %v", tt.err, IsLookup(tt.err), tt.lookup)
		}
		if IsStorage(tt.err) != tt.storage {
			t.Errorf("%v: IsStorage=%v, want %v", tt.err, IsStorage(tt.err), tt.storage)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidCondition, "bad condition")
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-EbasError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryValidation, CodeAlreadyEncoded, "encoded twice")
	if GetCode(err) != CodeAlreadyEncoded {
		t.Errorf("got %q, want %q", GetCode(err), CodeAlreadyEncoded)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-EbasError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewAdaptationError(CodeExtractFailed, "bad file", nil)
	detailed := err.WithDetails(map[string]interface{}{"file": "ES0010R.nc"})

	if detailed.Details["file"] != "ES0010R.nc" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	a := NewAdaptationError(CodeSeriesFailed, "no such variable", cause)
	if a.Category != ErrCategoryAdaptation || !errors.Is(a, cause) {
		t.Error("NewAdaptationError mismatch")
	}

	l := NewLookupError(CodeUnknownDomain, "no domain")
	if l.Category != ErrCategoryLookup || l.Code != CodeUnknownDomain {
		t.Error("NewLookupError mismatch")
	}

	s := NewStorageError(CodeWriteFailed, "disk full", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	v := NewValidationError(CodeInvalidEntry, "st after ed")
	if v.Category != ErrCategoryValidation {
		t.Error("NewValidationError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
