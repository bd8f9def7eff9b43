package domain

import "time"

// AssetKind enumerates uploaded asset roles.
type AssetKind string

const (
	AssetKindPackshot   AssetKind = "packshot"
	AssetKindBackground AssetKind = "background"
	AssetKindImage      AssetKind = "image"
)

// Asset is an uploaded image that canvases reference by ID.
type Asset struct {
	ID         string
	UserID     string
	Kind       AssetKind
	StorageKey string
	MIME       string
	Bytes      int64
	Width      int
	Height     int
	CreatedAt  time.Time
}

// RenderedArtifact is the encoded output for one canvas and format. Data is
// transient; long-term storage belongs to the storage collaborator.
type RenderedArtifact struct {
	CanvasID    string `json:"canvas_id"`
	RenderID    string `json:"render_id"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Quality     int    `json:"quality,omitempty"`
	SizeBytes   int    `json:"size_bytes"`
	MaxBytes    int    `json:"max_bytes"`
	Checksum    string `json:"checksum"`
	Path        string `json:"path,omitempty"`
	Data        []byte `json:"-"`
}

// OverBudget reports whether the encoder could not meet the byte budget.
func (a RenderedArtifact) OverBudget() bool {
	return a.MaxBytes > 0 && a.SizeBytes > a.MaxBytes
}

// AuditRecord is the append-only log of one validate/render cycle.
type AuditRecord struct {
	CanvasID     string            `json:"canvas_id"`
	RenderID     string            `json:"render_id,omitempty"`
	Issues       []ValidationIssue `json:"issues"`
	AppliedFixes []string          `json:"applied_fixes"`
	GeneratedAt  string            `json:"generated_at"`
	Degraded     []string          `json:"degraded,omitempty"`
	JSONPath     string            `json:"-"`
	CSVPath      string            `json:"-"`
}
