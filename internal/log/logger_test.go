package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentIsStampedOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentBank)
	l.Info("hello", FieldOperation, OpSync)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentBank || rec[FieldOperation] != OpSync {
		t.Fatalf("unexpected record %v", rec)
	}
	if strings.Count(buf.String(), `"component"`) != 1 {
		t.Fatalf("component repeated: %s", buf.String())
	}
}

func TestLogHTTPEndLevelByStatus(t *testing.T) {
	cases := map[int]string{200: "INFO", 404: "WARN", 503: "ERROR"}
	for status, level := range cases {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
		sl.LogHTTPEnd(context.Background(), httptest.NewRequest("GET", "/banks", nil), "req_1", status, 3, "10.0.0.1")
		if !strings.Contains(buf.String(), "level="+level) {
			t.Fatalf("status %d: expected %s in %q", status, level, buf.String())
		}
		if !strings.Contains(buf.String(), "request_id=req_1") {
			t.Fatalf("status %d: request id missing in %q", status, buf.String())
		}
	}
}

func TestLogFieldsForFailedCall(t *testing.T) {
	fields := NewFields().
		WithOperation(OpSync).
		WithResource("bank", 4).
		WithErrorType(ErrorTypeUpstream).
		WithError(errors.New("boom"))

	got := map[string]any{}
	kv := fields.ToSlice()
	for i := 0; i < len(kv); i += 2 {
		got[kv[i].(string)] = kv[i+1]
	}
	want := map[string]any{
		FieldOperation:  OpSync,
		FieldResource:   "bank",
		FieldResourceID: int64(4),
		FieldErrorType:  ErrorTypeUpstream,
		FieldError:      "boom",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %v, want %v", k, got[k], v)
		}
	}

	if kv := NewFields().WithResource("bank", 0).WithComponent(ComponentBank).ToSlice(); len(kv) != 2 {
		t.Fatalf("zero id and component must be left out, got %v", kv)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
	l := New(DefaultConfig())
	ctx := context.WithValue(context.Background(), LoggerContextKey, l)
	if FromContext(ctx) != l {
		t.Fatalf("expected stored logger")
	}
}
