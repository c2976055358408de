package google

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pfm/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("expected missing id error, got %v", err)
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "sheet",
		CredentialsFile: filepath.Join(t.TempDir(), "absent.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestNew_NoCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestAppendActivity_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: defaultSheetName}
	_, err := c.AppendActivity(context.Background(), core.Activity{ID: 1})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestActivityRow(t *testing.T) {
	a := core.Activity{
		ID:            12,
		CorrelationID: "c-12",
		Actor:         "ana@example.com",
		Resource:      core.ResourceBankAccount,
		Action:        core.ActionRestore,
		ResourceID:    4,
		Outcome:       core.OutcomeSuccess,
		Detail:        "0001",
		CreatedAt:     time.Date(2025, 3, 9, 14, 5, 0, 0, time.UTC),
	}
	row := activityRow(a)
	want := []any{"2025-03-09 14:05:00", "c-12", "ana@example.com", "bank_account", "restore", "4", "success", "0001", int64(12)}
	if len(row) != len(want) {
		t.Fatalf("row has %d columns, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}

	a.ResourceID = 0
	if got := activityRow(a)[5]; got != "" {
		t.Errorf("zero resource id should be blank, got %v", got)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Activity", 2025, "2025 Activity"},
		{" Activity ", 2024, "2024 Activity"},
		{"2023 Activity", 2025, "2023 Activity"},
		{"1800 Activity", 2025, "2025 1800 Activity"},
		{"", 2025, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
