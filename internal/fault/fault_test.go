package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, AuthFailed},
		{403, AuthFailed},
		{402, QuotaExceeded},
		{429, RateLimited},
		{500, ServerError},
		{503, ServerError},
		{400, BadRequest},
		{404, BadRequest},
	}
	for _, tt := range tests {
		if got := FromStatus(tt.status, "body").Kind; got != tt.want {
			t.Errorf("FromStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	err := New(RateLimited, "provider returned status 429")
	wrapped := fmt.Errorf("segment 2 audio: %w", err)
	if got := KindOf(wrapped); got != RateLimited {
		t.Errorf("KindOf(wrapped) = %v", got)
	}
	if !Is(wrapped, RateLimited) {
		t.Error("Is lost the kind through wrapping")
	}
}

func TestKindOfContextErrors(t *testing.T) {
	if got := KindOf(context.DeadlineExceeded); got != Timeout {
		t.Errorf("KindOf(DeadlineExceeded) = %v", got)
	}
	if got := KindOf(fmt.Errorf("op: %w", context.Canceled)); got != Timeout {
		t.Errorf("KindOf(wrapped Canceled) = %v", got)
	}
	if got := KindOf(errors.New("plain")); got != Unknown {
		t.Errorf("KindOf(plain) = %v", got)
	}
}

func TestTransient(t *testing.T) {
	for _, kind := range []Kind{RateLimited, ServerError, NetworkError} {
		if !Transient(New(kind, "x")) {
			t.Errorf("Transient(%v) = false", kind)
		}
	}
	for _, kind := range []Kind{AuthFailed, QuotaExceeded, BadRequest, InvalidInput, JobFailed} {
		if Transient(New(kind, "x")) {
			t.Errorf("Transient(%v) = true", kind)
		}
	}
}

func TestErrorMessageTruncatesBody(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	err := FromStatus(500, string(long))
	if len(err.Error()) > 400 {
		t.Errorf("error message not truncated: %d chars", len(err.Error()))
	}
}
