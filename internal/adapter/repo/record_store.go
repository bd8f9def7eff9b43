package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"adora/internal/domain"
	"adora/internal/infra"
	"adora/internal/sqlinline"
)

// RecordStorePG implements domain.RecordStore on PostgreSQL through the
// marker-checked SQL runner.
type RecordStorePG struct {
	db infra.SQLExecutor
}

// NewRecordStore constructs a new record store instance.
func NewRecordStore(db infra.SQLExecutor) *RecordStorePG {
	return &RecordStorePG{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *RecordStorePG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureCreativeSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveAsset records an uploaded image.
func (r *RecordStorePG) SaveAsset(ctx context.Context, a domain.Asset) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertCreativeAsset,
		a.ID, a.UserID, string(a.Kind), a.StorageKey, a.MIME, a.Bytes, a.Width, a.Height, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", a.ID, err)
	}
	return nil
}

// SaveRender records one stored artifact.
func (r *RecordStorePG) SaveRender(ctx context.Context, rec domain.RenderRecord) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertCreativeRender,
		rec.RenderID, rec.Format, rec.CanvasID, rec.UserID, rec.StorageKey, rec.SizeBytes, rec.Checksum, rec.AuditKey, rec.Passed, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert render %s/%s: %w", rec.RenderID, rec.Format, err)
	}
	return nil
}

// SaveCanvasSession stores the latest version of a canvas.
func (r *RecordStorePG) SaveCanvasSession(ctx context.Context, c domain.CreativeCanvas) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal canvas %s: %w", c.ID, err)
	}
	if _, err := r.db.Exec(ctx, sqlinline.QUpsertCanvasSession, c.ID, c.UserID, c.Format, payload); err != nil {
		return fmt.Errorf("upsert canvas %s: %w", c.ID, err)
	}
	return nil
}

// ListRenders returns the newest renders of a canvas.
func (r *RecordStorePG) ListRenders(ctx context.Context, canvasID string, limit int) ([]domain.RenderRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, sqlinline.QSelectRendersByCanvas, canvasID, limit)
	if err != nil {
		return nil, fmt.Errorf("list renders: %w", err)
	}
	defer rows.Close()

	out := []domain.RenderRecord{}
	for rows.Next() {
		var rec domain.RenderRecord
		if err := rows.Scan(&rec.RenderID, &rec.Format, &rec.CanvasID, &rec.UserID, &rec.StorageKey,
			&rec.SizeBytes, &rec.Checksum, &rec.AuditKey, &rec.Passed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.RecordStore = (*RecordStorePG)(nil)
