package infra

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingDB struct {
	queries []string
	err     error
}

func (d *recordingDB) Exec(_ context.Context, q string, _ ...any) (pgconn.CommandTag, error) {
	d.queries = append(d.queries, q)
	return pgconn.NewCommandTag("INSERT 0 1"), d.err
}

func (d *recordingDB) QueryRow(_ context.Context, q string, _ ...any) pgx.Row {
	d.queries = append(d.queries, q)
	return errorRow{err: pgx.ErrNoRows}
}

func (d *recordingDB) Query(_ context.Context, q string, _ ...any) (pgx.Rows, error) {
	d.queries = append(d.queries, q)
	return nil, d.err
}

const markedQuery = "--sql 0b7d2f4e-91c3-4a8e-b5d6-2f0c8e1a7b34\nselect 1;\n"

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		wantErr error
	}{
		{"valid", markedQuery, "0b7d2f4e-91c3-4a8e-b5d6-2f0c8e1a7b34", nil},
		{"leading whitespace", "\n  " + markedQuery, "0b7d2f4e-91c3-4a8e-b5d6-2f0c8e1a7b34", nil},
		{"empty", "   ", "", ErrEmptyQuery},
		{"no marker", "select 1;", "", ErrMissingMarker},
		{"uppercase uuid", "--sql 0B7D2F4E-91C3-4A8E-B5D6-2F0C8E1A7B34\nselect 1;", "", ErrMissingMarker},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := ExtractMarker(tc.query)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q", marker)
			}
			if err == nil && strings.Contains(body, "--sql") {
				t.Fatalf("body still carries marker: %q", body)
			}
		})
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	db := &recordingDB{}
	r := NewSQLRunner(db, zerolog.Nop())
	if _, err := r.Exec(context.Background(), markedQuery); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := r.QueryRow(context.Background(), markedQuery).Scan(); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("Scan err = %v", err)
	}
	if len(db.queries) != 2 || strings.TrimSpace(db.queries[0]) != "select 1;" {
		t.Fatalf("queries = %q", db.queries)
	}
}

func TestSQLRunnerRejectsUnmarked(t *testing.T) {
	db := &recordingDB{}
	r := NewSQLRunner(db, zerolog.Nop())
	if _, err := r.Exec(context.Background(), "delete from creative_renders"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Exec err = %v", err)
	}
	if _, err := r.Query(context.Background(), "select 1"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Query err = %v", err)
	}
	if len(db.queries) != 0 {
		t.Fatalf("unmarked queries reached the database: %q", db.queries)
	}
}

func TestSQLRunnerPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewSQLRunner(&recordingDB{err: boom}, zerolog.Nop())
	if _, err := r.Query(context.Background(), markedQuery); !errors.Is(err, boom) {
		t.Fatalf("Query err = %v", err)
	}
}
