package logging

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithOperationAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	WithOperation(logger, "usecase.register", "req-1").Info("done")
	WithOperation(logger, "usecase.register", "").Info("anonymous")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "usecase.register" || fields["request_id"] != "req-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Fatal("expected no request_id for empty id")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc")
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestOperationErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("repository.create_user", "req-9", base)

	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to find the wrapped error")
	}
	if err.Error() != "repository.create_user (request_id=req-9): boom" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if NewOperationError("op", "", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestErrorFieldsNamesInnermostOperation(t *testing.T) {
	inner := NewOperationError("repository.create_user", "req-1", errors.New("conn reset"))
	outer := NewOperationError("usecase.register", "", inner)

	core, logs := observer.New(zapcore.InfoLevel)
	zap.New(core).Error("failed", ErrorFields(outer)...)

	entry := logs.All()[0].ContextMap()
	if entry["failed_operation"] != "repository.create_user" {
		t.Fatalf("unexpected operation: %v", entry["failed_operation"])
	}
	if entry["failed_request_id"] != "req-1" {
		t.Fatalf("unexpected request id: %v", entry["failed_request_id"])
	}

	if got := ErrorFields(errors.New("plain")); len(got) != 1 {
		t.Fatalf("expected only the error field, got %d", len(got))
	}
}
