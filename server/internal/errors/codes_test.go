package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidArgument, http.StatusBadRequest},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{ErrCodeContextCanceled, StatusClientClosedRequest},
		{ErrCodeGenerationFailed, http.StatusInternalServerError},
		{ErrCodeSessionStoreFailed, http.StatusInternalServerError},
		{ErrorCode("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := HTTPStatus(tt.code); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestChatError(t *testing.T) {
	cause := errors.New("connection refused")
	err := GenerationFailed(cause).WithContext("backend", "openai")

	if !errors.Is(err, cause) {
		t.Error("expected the cause to be unwrappable")
	}
	if err.Error() != "[GENERATION_FAILED] generation failed: connection refused" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if err.Context["backend"] != "openai" {
		t.Errorf("expected context to be kept, got %v", err.Context)
	}

	wrapped := fmt.Errorf("chat: %w", err)
	if !IsCode(wrapped, ErrCodeGenerationFailed) {
		t.Error("IsCode should see through wrapping")
	}
	if got := GetCodeFromError(errors.New("plain"), ErrCodeInternal); got != ErrCodeInternal {
		t.Errorf("expected default code, got %s", got)
	}
}

func TestFromContextError(t *testing.T) {
	if got := FromContextError(fmt.Errorf("call: %w", context.DeadlineExceeded), ErrCodeGenerationFailed, "generation timed out"); got.Code != ErrCodeTimeout {
		t.Errorf("expected TIMEOUT, got %s", got.Code)
	}
	if got := FromContextError(context.Canceled, ErrCodeGenerationFailed, "x"); got.Code != ErrCodeContextCanceled {
		t.Errorf("expected CONTEXT_CANCELED, got %s", got.Code)
	}
	if got := FromContextError(errors.New("boom"), ErrCodeGenerationFailed, "x"); got.Code != ErrCodeGenerationFailed {
		t.Errorf("expected GENERATION_FAILED, got %s", got.Code)
	}
}
