package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"librarian/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsCancellation(t *testing.T) {
	if services.IsCancellation(nil) {
		t.Fatal("nil must not be a cancellation")
	}
	if !services.IsCancellation(fmt.Errorf("run: %w", context.Canceled)) {
		t.Fatal("expected context.Canceled to count as cancellation")
	}
	if !services.IsCancellation(services.Wrap(services.ErrCancelled, "encode", "run", "stopped", nil)) {
		t.Fatal("expected ErrCancelled to count as cancellation")
	}
	if services.IsCancellation(services.Wrap(services.ErrTimeout, "probe", "ffprobe", "slow", nil)) {
		t.Fatal("timeout must not count as cancellation")
	}
}
