package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"glass/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "extract", "frames", "failed", base)
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
	for _, fragment := range []string{"extract", "frames", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.ErrorKind
	}{
		{"nil", nil, services.KindNone},
		{"transient", services.Wrap(services.ErrTransient, "transcribe", "post", "timeout", nil), services.KindTransient},
		{"auth", services.WrapWithCode(services.ErrAuthOrQuota, "transcribe", "post", "denied", "401", nil), services.KindAuthOrQuota},
		{"malformed", fmt.Errorf("outer: %w", services.Wrap(services.ErrMalformed, "", "", "empty", nil)), services.KindMalformed},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), services.KindCanceled},
		{"deadline", context.DeadlineExceeded, services.KindTransient},
		{"unknown", errors.New("mystery"), services.KindUnknown},
		{"recorded failure", services.WrapWithCode(services.ErrFailed, "ingestion", "fetch", "[transient] timeout", "transient", nil), services.KindFailed},
		{"joined leading wins", errors.Join(
			services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "exit 1", nil),
			services.Wrap(services.ErrDisqualified, "transcribe", "check", "stereo", nil),
		), services.KindExternalTool},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Kind(tc.err); got != tc.want {
				t.Fatalf("Kind() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetailsSurfacesCode(t *testing.T) {
	err := services.WrapWithCode(services.ErrAuthOrQuota, "transcribe", "remote", "http 403", "403 request_id=abc", nil)
	details := services.Details(fmt.Errorf("ingest: %w", err))
	if details.Kind != services.KindAuthOrQuota {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Code != "403 request_id=abc" {
		t.Fatalf("unexpected code %q", details.Code)
	}
	if details.Operation != "remote" || details.Hint == "" {
		t.Fatalf("unexpected details %+v", details)
	}
	if services.Retryable(err) {
		t.Fatal("auth failures must not be retryable")
	}
}
