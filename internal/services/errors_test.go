package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"facecam/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrEncoderUnsupported, "encoder", "start", "media type rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrEncoderUnsupported) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encoder", "start", "media type rejected"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrAlreadyRecording, "recording", "start", "", nil)
	if !errors.Is(err, services.ErrAlreadyRecording) {
		t.Fatalf("expected marker, got %v", err)
	}
	if got := err.Error(); got != "already recording: recording: start" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"source", services.Wrap(services.ErrSourceUnavailable, "session", "start", "no camera", nil), true},
		{"detector", services.Wrap(services.ErrDetectorUnavailable, "detector", "init", "", nil), false},
		{"persistence", fmt.Errorf("outer: %w", services.ErrPersistenceWriteFailed), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		if got := services.IsFatal(tc.err); got != tc.want {
			t.Fatalf("%s: IsFatal=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHintCoversMarkers(t *testing.T) {
	markers := []error{
		services.ErrSourceUnavailable,
		services.ErrDetectorUnavailable,
		services.ErrEncoderUnsupported,
		services.ErrPersistenceWriteFailed,
		services.ErrPersistenceReadCorrupt,
		services.ErrAlreadyRecording,
	}
	for _, marker := range markers {
		if services.Hint(services.Wrap(marker, "x", "y", "", nil)) == "" {
			t.Fatalf("expected hint for %v", marker)
		}
	}
	if services.Hint(errors.New("other")) != "" {
		t.Fatal("expected no hint for unknown error")
	}
}
