package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategory_Terminal(t *testing.T) {
	tests := []struct {
		category Category
		terminal bool
	}{
		{CategoryValidation, true},
		{CategoryUnauthorized, true},
		{CategoryNotFound, true},
		{CategoryMalformed, true},
		{CategoryTimeout, false},
		{CategoryUnavailable, false},
		{CategoryRateLimited, false},
		{CategoryInternal, false},
		{CategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			if got := tt.category.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestClassify_NilError(t *testing.T) {
	if err := Classify(CategoryValidation, nil); err != nil {
		t.Errorf("Classify(nil) = %v, want nil", err)
	}
}

func TestCategoryOf_WrappedChain(t *testing.T) {
	base := Classify(CategoryRateLimited, errors.New("429 too many requests"))
	wrapped := fmt.Errorf("charge failed: %w", base)

	if got := CategoryOf(wrapped); got != CategoryRateLimited {
		t.Errorf("CategoryOf() = %v, want rate_limited", got)
	}
	if !Retryable(wrapped) {
		t.Error("Retryable() = false, want true")
	}
}

func TestCategoryOf_DeadlineIsTimeout(t *testing.T) {
	if got := CategoryOf(context.DeadlineExceeded); got != CategoryTimeout {
		t.Errorf("CategoryOf(DeadlineExceeded) = %v, want timeout", got)
	}
	if got := CategoryOf(ErrOperationTimeout); got != CategoryTimeout {
		t.Errorf("CategoryOf(ErrOperationTimeout) = %v, want timeout", got)
	}
}

func TestCategoryOf_Unclassified(t *testing.T) {
	err := errors.New("something broke")
	if got := CategoryOf(err); got != CategoryUnknown {
		t.Errorf("CategoryOf() = %v, want unknown", got)
	}
	if !Retryable(err) {
		t.Error("unclassified errors should be retryable")
	}
}

func TestClassify_PreservesMessage(t *testing.T) {
	err := Classify(CategoryNotFound, errors.New("member 42 not found"))
	if err.Error() != "member 42 not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRetryExhaustedError_Unwrap(t *testing.T) {
	underlying := errors.New("boom")
	err := &RetryExhaustedError{Attempts: 3, Err: underlying}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is() = false, want true")
	}
	if err.Error() == "" {
		t.Error("Error() is empty")
	}
}
