package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"voicebatch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRetrieval, "downloading", "stream", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"downloading", "stream", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestSkipReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"submission", services.Wrap(services.ErrSubmission, "submitting", "post", "rejected", nil), "submission failed"},
		{"failed", services.Wrap(services.ErrJobFailed, "polling", "", "", nil), "job failed"},
		{"expired", services.Wrap(services.ErrJobExpired, "polling", "", "", nil), "job expired"},
		{"timeout", services.Wrap(services.ErrPollTimeout, "polling", "", "", nil), "poll timeout"},
		{"retrieval", services.Wrap(services.ErrRetrieval, "downloading", "", "", nil), "download failed"},
		{"extraction", services.Wrap(services.ErrExtraction, "extracting", "", "", nil), "extraction failed"},
		{"placement", services.Wrap(services.ErrPlacement, "placing", "", "", nil), "placement failed"},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), "interrupted"},
		{"other", errors.New("io"), "unexpected error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.SkipReason(tt.err); got != tt.want {
				t.Fatalf("SkipReason() = %q, want %q", got, tt.want)
			}
		})
	}
}
