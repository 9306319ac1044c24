package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\necho 'present version 7.1 Copyright'\necho second line\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present, VersionArgs: []string{"-version"}},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Version != "present version 7.1 Copyright" {
		t.Fatalf("unexpected version %q", results[0].Version)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", results[2].Detail)
	}

	if missing := MissingRequired(results); !slices.Equal(missing, []string{"Missing"}) {
		t.Fatalf("unexpected missing list %v", missing)
	}
}

func TestRequirementsNameBothTools(t *testing.T) {
	reqs := Requirements("/opt/ffmpeg", "/opt/ffprobe")
	if len(reqs) != 2 || reqs[0].Command != "/opt/ffprobe" || reqs[1].Command != "/opt/ffmpeg" {
		t.Fatalf("unexpected requirements %+v", reqs)
	}
	for _, req := range reqs {
		if req.Optional {
			t.Fatalf("%s must be required", req.Name)
		}
	}
}

type stubCaps struct {
	available map[string]bool
	err       error
}

func (s stubCaps) HasEncoder(_ context.Context, name string) (bool, error) {
	return s.available[name], s.err
}

func TestCheckEncoders(t *testing.T) {
	caps := stubCaps{available: map[string]bool{"libx265": true, "libsvtav1": true, "hevc_nvenc": true}}
	results := CheckEncoders(context.Background(), caps)
	byName := map[string]Status{}
	for _, status := range results {
		byName[status.Name] = status
	}

	if !byName["libx265"].Available || byName["libx265"].Optional {
		t.Fatalf("libx265 should be available and required: %+v", byName["libx265"])
	}
	if !byName["hevc_nvenc"].Available || !byName["hevc_nvenc"].Optional {
		t.Fatalf("hevc_nvenc should be available and optional: %+v", byName["hevc_nvenc"])
	}
	qsv := byName["av1_qsv"]
	if qsv.Available || qsv.Detail != "not compiled into this ffmpeg build; falls back to libsvtav1" {
		t.Fatalf("unexpected av1_qsv status %+v", qsv)
	}
	if missing := MissingRequired(results); len(missing) != 0 {
		t.Fatalf("GPU encoders must not count as missing: %v", missing)
	}
}

func TestCheckEncodersReportsCapabilityError(t *testing.T) {
	results := CheckEncoders(context.Background(), stubCaps{err: errors.New("ffmpeg exploded")})
	for _, status := range results {
		if status.Available || status.Detail != "ffmpeg exploded" {
			t.Fatalf("expected error detail, got %+v", status)
		}
	}
	if missing := MissingRequired(results); !slices.Equal(missing, []string{"libx265", "libsvtav1"}) {
		t.Fatalf("unexpected missing list %v", missing)
	}
}
