package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"adora/internal/domain"
	"adora/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type fakeExecutor struct {
	calls   []execCall
	execErr error
	rows    [][]any
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeExecutor) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

type fakeRows struct {
	rows   [][]any
	idx    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, errors.New("unsupported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func TestSaveRenderUsesMarkedQuery(t *testing.T) {
	db := &fakeExecutor{}
	store := NewRecordStore(db)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := domain.RenderRecord{RenderID: "r1", CanvasID: "c1", Format: "story", StorageKey: "renders/r1/story.png", SizeBytes: 10, Checksum: "abc", Passed: true, CreatedAt: now}

	if err := store.SaveRender(context.Background(), rec); err != nil {
		t.Fatalf("SaveRender: %v", err)
	}
	if len(db.calls) != 1 || db.calls[0].query != sqlinline.QInsertCreativeRender {
		t.Fatalf("calls = %+v", db.calls)
	}
	if !strings.HasPrefix(db.calls[0].query, "--sql ") {
		t.Fatalf("query is missing its audit marker")
	}
	args := db.calls[0].args
	if len(args) != 10 || args[0] != "r1" || args[1] != "story" || args[8] != true || args[9] != now {
		t.Fatalf("args = %#v", args)
	}
}

func TestSaveCanvasSessionMarshalsPayload(t *testing.T) {
	db := &fakeExecutor{}
	c := domain.CreativeCanvas{ID: "c1", Format: "feed", Width: 1080, Height: 1080, PackshotIDs: []string{"p"}}
	if err := NewRecordStore(db).SaveCanvasSession(context.Background(), c); err != nil {
		t.Fatalf("SaveCanvasSession: %v", err)
	}
	payload, ok := db.calls[0].args[3].([]byte)
	if !ok {
		t.Fatalf("payload type %T", db.calls[0].args[3])
	}
	var decoded domain.CreativeCanvas
	if err := json.Unmarshal(payload, &decoded); err != nil || decoded.ID != "c1" || decoded.PackshotIDs[0] != "p" {
		t.Fatalf("decoded = %+v err=%v", decoded, err)
	}
}

func TestSaveAssetWrapsErrors(t *testing.T) {
	db := &fakeExecutor{execErr: errors.New("connection reset")}
	err := NewRecordStore(db).SaveAsset(context.Background(), domain.Asset{ID: "a1", Kind: domain.AssetKindPackshot})
	if err == nil || !strings.Contains(err.Error(), "a1") || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("err = %v", err)
	}
	if db.calls[0].args[2] != "packshot" {
		t.Fatalf("kind arg = %#v", db.calls[0].args[2])
	}
}

func TestListRendersScansRows(t *testing.T) {
	now := time.Now().UTC()
	db := &fakeExecutor{rows: [][]any{
		{"r2", "banner", "c1", "", "renders/r2/banner.jpg", 900, "ff", "audit_logs/c1_r2_audit.json", false, now},
		{"r1", "story", "c1", "u", "renders/r1/story.png", 500, "ee", "", true, now},
	}}
	got, err := NewRecordStore(db).ListRenders(context.Background(), "c1", 0)
	if err != nil {
		t.Fatalf("ListRenders: %v", err)
	}
	if len(got) != 2 || got[0].Format != "banner" || got[1].SizeBytes != 500 || !got[1].Passed {
		t.Fatalf("records = %+v", got)
	}
	if db.calls[0].args[1] != 50 {
		t.Fatalf("limit arg = %#v", db.calls[0].args[1])
	}
}
