// Package audit persists the validation and fix history of a render. The
// recorder never fails its caller: every problem it meets is folded into the
// returned record.
package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"adora/internal/domain"
	"adora/internal/storage"
)

// Writer is the storage capability the recorder needs.
type Writer interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Clock supplies the record timestamp.
type Clock interface {
	Now() (time.Time, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() (time.Time, error)

// Now implements Clock.
func (f ClockFunc) Now() (time.Time, error) { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock = ClockFunc(func() (time.Time, error) { return time.Now().UTC(), nil })

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Recorder normalizes issues and writes JSON and CSV views of each record.
type Recorder struct {
	store  Writer
	clock  Clock
	logger zerolog.Logger
	prefix string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger attaches a logger for write failures.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithPrefix changes the key prefix records are written under.
func WithPrefix(prefix string) Option {
	return func(r *Recorder) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRecorder builds a recorder. A nil store keeps records in memory only.
func NewRecorder(store Writer, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		clock:  SystemClock,
		logger: zerolog.Nop(),
		prefix: storage.PrefixAudit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record builds and persists the audit record for one validate/render cycle.
// Each entry of issues is normalized independently.
func (r *Recorder) Record(ctx context.Context, canvasID, renderID string, issues []any, fixes []string) (rec domain.AuditRecord) {
	rec = domain.AuditRecord{
		CanvasID:     canvasID,
		RenderID:     renderID,
		Issues:       make([]domain.ValidationIssue, 0, len(issues)),
		AppliedFixes: append([]string{}, fixes...),
	}
	defer func() {
		if p := recover(); p != nil {
			rec.Degraded = append(rec.Degraded, fmt.Sprintf("recorder: %v", p))
			r.logger.Error().Str("canvas_id", canvasID).Interface("panic", p).Msg("audit recorder recovered")
		}
	}()

	for _, item := range issues {
		rec.Issues = append(rec.Issues, Normalize(item))
	}

	if ts, err := r.now(); err != nil {
		rec.Degraded = append(rec.Degraded, fmt.Sprintf("clock: %v", err))
	} else {
		rec.GeneratedAt = ts.Format(time.RFC3339Nano)
	}

	if r.store == nil {
		return rec
	}
	base := path.Join(r.prefix, recordName(canvasID, renderID))

	if payload, err := json.MarshalIndent(rec, "", "  "); err != nil {
		rec.Degraded = append(rec.Degraded, fmt.Sprintf("json: %v", err))
	} else if key, err := r.store.Write(ctx, base+"_audit.json", payload); err != nil {
		rec.Degraded = append(rec.Degraded, fmt.Sprintf("json write: %v", err))
		r.logger.Warn().Err(err).Str("canvas_id", canvasID).Msg("audit json write failed")
	} else {
		rec.JSONPath = key
	}

	if payload, err := issuesCSV(rec.Issues); err != nil {
		rec.Degraded = append(rec.Degraded, fmt.Sprintf("csv: %v", err))
	} else if key, err := r.store.Write(ctx, base+"_audit.csv", payload); err != nil {
		rec.Degraded = append(rec.Degraded, fmt.Sprintf("csv write: %v", err))
		r.logger.Warn().Err(err).Str("canvas_id", canvasID).Msg("audit csv write failed")
	} else {
		rec.CSVPath = key
	}
	return rec
}

func (r *Recorder) now() (ts time.Time, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("clock panicked: %v", p)
		}
	}()
	return r.clock.Now()
}

func issuesCSV(issues []domain.ValidationIssue) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"code", "message", "severity"}); err != nil {
		return nil, err
	}
	for _, issue := range issues {
		if err := w.Write([]string{string(issue.Code), issue.Message, string(issue.Severity)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordName builds a filesystem-safe stem from the identifiers.
func recordName(canvasID, renderID string) string {
	name := unsafeKeyChars.ReplaceAllString(canvasID, "_")
	if name == "" || name == "." || name == ".." {
		name = "unknown"
	}
	if renderID != "" {
		name += "_" + unsafeKeyChars.ReplaceAllString(renderID, "_")
	}
	return name
}
