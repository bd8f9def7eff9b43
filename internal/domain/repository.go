package domain

import (
	"context"
	"time"
)

// RenderRecord indexes one stored artifact.
type RenderRecord struct {
	RenderID   string    `json:"render_id"`
	CanvasID   string    `json:"canvas_id"`
	UserID     string    `json:"user_id,omitempty"`
	Format     string    `json:"format"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int       `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	AuditKey   string    `json:"audit_key,omitempty"`
	Passed     bool      `json:"passed"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordStore persists metadata about uploads, renders and canvas sessions.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	SaveAsset(ctx context.Context, asset Asset) error
	SaveRender(ctx context.Context, record RenderRecord) error
	SaveCanvasSession(ctx context.Context, canvas CreativeCanvas) error
	ListRenders(ctx context.Context, canvasID string, limit int) ([]RenderRecord, error)
}

// NopRecordStore discards every record. It is used when no database is configured.
type NopRecordStore struct{}

func (NopRecordStore) SaveAsset(context.Context, Asset) error { return nil }
func (NopRecordStore) SaveRender(context.Context, RenderRecord) error { return nil }
func (NopRecordStore) SaveCanvasSession(context.Context, CreativeCanvas) error { return nil }

func (NopRecordStore) ListRenders(context.Context, string, int) ([]RenderRecord, error) {
	return []RenderRecord{}, nil
}

var _ RecordStore = NopRecordStore{}
