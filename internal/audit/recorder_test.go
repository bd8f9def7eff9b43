package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"adora/internal/domain"
	"adora/internal/storage"
)

type memStore struct {
	files map[string][]byte
	err   error
}

func (m *memStore) Write(_ context.Context, key string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[key] = data
	return key, nil
}

type accessorIssue struct{}

func (accessorIssue) Code() string     { return "CUSTOM" }
func (accessorIssue) Message() string  { return "from accessors" }
func (accessorIssue) Severity() string { return "ERROR" }

type opaque struct{ n int }

type panicky struct{}

func (*panicky) String() string { panic("boom") }

var fixedClock = ClockFunc(func() (time.Time, error) {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), nil
})

func TestRecordNormalizesMixedIssues(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, WithClock(fixedClock))
	issues := []any{
		domain.ValidationIssue{Code: domain.CodeSafeZoneTop, Message: "top", Severity: domain.SeverityError},
		map[string]any{"code": "FONT_TOO_SMALL", "message": "small"},
		opaque{n: 3},
	}

	rec := r.Record(context.Background(), "canvas-1", "r1", issues, []string{"moved"})

	want := []domain.ValidationIssue{
		{Code: domain.CodeSafeZoneTop, Message: "top", Severity: domain.SeverityError},
		{Code: "FONT_TOO_SMALL", Message: "small", Severity: domain.SeverityWarning},
		{Code: domain.CodeUnknown, Message: "{}", Severity: domain.SeverityWarning},
	}
	if diff := cmp.Diff(want, rec.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if rec.GeneratedAt != "2024-05-01T12:00:00Z" || len(rec.Degraded) != 0 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.JSONPath != "audit_logs/canvas-1_r1_audit.json" || rec.CSVPath != "audit_logs/canvas-1_r1_audit.csv" {
		t.Fatalf("paths = %q %q", rec.JSONPath, rec.CSVPath)
	}

	var stored map[string]any
	if err := json.Unmarshal(store.files[rec.JSONPath], &stored); err != nil {
		t.Fatalf("stored json: %v", err)
	}
	for _, key := range []string{"canvas_id", "issues", "applied_fixes", "generated_at"} {
		if _, ok := stored[key]; !ok {
			t.Fatalf("stored json missing %q: %v", key, stored)
		}
	}
	csv := string(store.files[rec.CSVPath])
	if !strings.HasPrefix(csv, "code,message,severity\n") || strings.Count(csv, "\n") != 4 {
		t.Fatalf("csv = %q", csv)
	}
}

func TestNormalizeShapes(t *testing.T) {
	issuePtr := &domain.ValidationIssue{Code: domain.CodeBannedPhrase, Message: "p", Severity: domain.SeverityWarning}
	var nilPtr *domain.ValidationIssue
	tests := []struct {
		name string
		in   any
		want domain.ValidationIssue
	}{
		{"pointer", issuePtr, *issuePtr},
		{"nil pointer", nilPtr, domain.ValidationIssue{Code: domain.CodeUnknown, Severity: domain.SeverityWarning}},
		{"nil", nil, domain.ValidationIssue{Code: domain.CodeUnknown, Severity: domain.SeverityWarning}},
		{"string map", map[string]string{"code": "X", "severity": "error"}, domain.ValidationIssue{Code: "X", Message: "map[code:X severity:error]", Severity: domain.SeverityError}},
		{"accessors", accessorIssue{}, domain.ValidationIssue{Code: "CUSTOM", Message: "from accessors", Severity: domain.SeverityError}},
		{"error", errors.New("disk on fire"), domain.ValidationIssue{Code: domain.CodeUnknown, Message: "disk on fire", Severity: domain.SeverityWarning}},
		{"string", "plain", domain.ValidationIssue{Code: domain.CodeUnknown, Message: "plain", Severity: domain.SeverityWarning}},
		{"tagged struct", struct {
			Code string `json:"code"`
			Msg  string `json:"message"`
		}{"Y", "m"}, domain.ValidationIssue{Code: "Y", Message: "m", Severity: domain.SeverityWarning}},
		{"number", 42, domain.ValidationIssue{Code: domain.CodeUnknown, Message: "42", Severity: domain.SeverityWarning}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Normalize(tt.in)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeRecoversPanics(t *testing.T) {
	got := Normalize(&panicky{})
	if got.Code != domain.CodeNormalizeError || got.Severity != domain.SeverityWarning {
		t.Fatalf("got %+v", got)
	}
}

func TestRecordDegradesInsteadOfFailing(t *testing.T) {
	store := &memStore{err: errors.New("read-only fs")}
	brokenClock := ClockFunc(func() (time.Time, error) { return time.Time{}, errors.New("no clock") })
	r := NewRecorder(store, WithClock(brokenClock))

	rec := r.Record(context.Background(), "../evil", "", []any{&panicky{}, make(chan int)}, nil)

	if rec.GeneratedAt != "" {
		t.Fatalf("GeneratedAt = %q", rec.GeneratedAt)
	}
	if len(rec.Issues) != 2 || rec.Issues[0].Code != domain.CodeNormalizeError || rec.Issues[1].Code != domain.CodeUnknown {
		t.Fatalf("issues = %+v", rec.Issues)
	}
	if rec.AppliedFixes == nil || len(rec.AppliedFixes) != 0 {
		t.Fatalf("fixes = %#v", rec.AppliedFixes)
	}
	if len(rec.Degraded) != 3 {
		t.Fatalf("degraded = %v", rec.Degraded)
	}
	if rec.JSONPath != "" || rec.CSVPath != "" {
		t.Fatalf("paths set despite failed writes")
	}
}

func TestRecordWritesThroughFileStore(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	rec := NewRecorder(fs, WithClock(fixedClock)).Record(context.Background(), "c/1", "", nil, []string{"a"})
	if rec.JSONPath != "audit_logs/c_1_audit.json" {
		t.Fatalf("JSONPath = %q", rec.JSONPath)
	}
	data, err := fs.Read(context.Background(), rec.JSONPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var got domain.AuditRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.CanvasID != "c/1" || len(got.Issues) != 0 || got.AppliedFixes[0] != "a" {
		t.Fatalf("stored = %+v", got)
	}
}

func TestRecordNilStore(t *testing.T) {
	rec := NewRecorder(nil, WithClock(fixedClock)).Record(context.Background(), "c", "r", []any{"x"}, nil)
	if len(rec.Issues) != 1 || len(rec.Degraded) != 0 || rec.JSONPath != "" {
		t.Fatalf("record = %+v", rec)
	}
}
