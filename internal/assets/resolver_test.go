package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"adora/internal/domain"
	"adora/internal/storage"
)

type recordingStore struct {
	domain.NopRecordStore
	mu     sync.Mutex
	assets []domain.Asset
}

func (r *recordingStore) SaveAsset(_ context.Context, a domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, a)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newService(t *testing.T, records domain.RecordStore, max int64) (*Service, *storage.FileStore) {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewService(fs, records, max), fs
}

func TestUploadThenResolve(t *testing.T) {
	records := &recordingStore{}
	svc, _ := newService(t, records, 0)
	ctx := context.Background()
	data := pngBytes(t, 4, 3)

	asset, err := svc.Upload(ctx, "user-1", domain.AssetKindPackshot, data)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if asset.MIME != "image/png" || asset.Width != 4 || asset.Height != 3 || asset.Bytes != int64(len(data)) {
		t.Fatalf("asset = %+v", asset)
	}
	if !strings.HasPrefix(asset.StorageKey, "uploads/") || !strings.HasSuffix(asset.StorageKey, ".png") {
		t.Fatalf("storage key = %q", asset.StorageKey)
	}
	if len(records.assets) != 1 || records.assets[0].ID != asset.ID {
		t.Fatalf("records = %+v", records.assets)
	}

	for _, ref := range []string{asset.ID, asset.StorageKey} {
		got, err := svc.Resolve(ctx, ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", ref, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("Resolve(%q) returned different bytes", ref)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	svc, _ := newService(t, nil, 0)
	for _, ref := range []string{"", "missing", "uploads/missing.png", "../../etc/passwd"} {
		if _, err := svc.Resolve(context.Background(), ref); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Resolve(%q) err = %v", ref, err)
		}
	}
}

func TestResolveTriesExtensions(t *testing.T) {
	svc, fs := newService(t, nil, 0)
	ctx := context.Background()
	if _, err := fs.Write(ctx, "uploads/bg-7.webp", []byte("webp")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := svc.Resolve(ctx, "bg-7")
	if err != nil || string(got) != "webp" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
}

func TestUploadRejects(t *testing.T) {
	svc, _ := newService(t, nil, 64)
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "", domain.AssetKindImage, []byte("%PDF-1.4 not an image")); !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("pdf err = %v", err)
	}
	if _, err := svc.Upload(ctx, "", domain.AssetKindImage, nil); !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("empty err = %v", err)
	}
	if _, err := svc.Upload(ctx, "", domain.AssetKindImage, make([]byte, 65)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("large err = %v", err)
	}
}
