// Package assets stores uploaded images and resolves canvas references to
// their bytes.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"adora/internal/domain"
	"adora/internal/storage"
)

// LookupExtensions are tried in order when resolving a bare asset id.
var LookupExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// ErrUnsupportedMedia is returned for uploads that are not raster images.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// ErrTooLarge is returned for uploads above the configured limit.
var ErrTooLarge = errors.New("upload too large")

var allowedMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// Store is the subset of storage.FileStore the package relies on.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Find(ctx context.Context, prefix, id string, exts []string) (string, error)
}

// Service handles uploads and reference resolution.
type Service struct {
	store    Store
	records  domain.RecordStore
	maxBytes int64
	now      func() time.Time
}

// NewService builds a Service. maxBytes <= 0 disables the upload limit and a
// nil records store discards metadata.
func NewService(store Store, records domain.RecordStore, maxBytes int64) *Service {
	if records == nil {
		records = domain.NopRecordStore{}
	}
	return &Service{store: store, records: records, maxBytes: maxBytes, now: time.Now}
}

// Resolve returns the bytes behind ref. A ref is either a bare upload id or a
// key under uploads/. Unknown refs yield domain.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty asset reference: %w", domain.ErrNotFound)
	}
	key := ref
	if !strings.HasPrefix(ref, storage.PrefixUploads+"/") {
		found, err := s.store.Find(ctx, storage.PrefixUploads, ref, LookupExtensions)
		if err != nil {
			return nil, mapNotFound(ref, err)
		}
		key = found
	}
	data, err := s.store.Read(ctx, key)
	if err != nil {
		return nil, mapNotFound(ref, err)
	}
	return data, nil
}

func mapNotFound(ref string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidKey) {
		return fmt.Errorf("asset %q: %w", ref, domain.ErrNotFound)
	}
	return fmt.Errorf("asset %q: %w", ref, err)
}

// Upload validates and stores an image, returning its metadata.
func (s *Service) Upload(ctx context.Context, userID string, kind domain.AssetKind, data []byte) (domain.Asset, error) {
	if len(data) == 0 {
		return domain.Asset{}, fmt.Errorf("empty upload: %w", ErrUnsupportedMedia)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return domain.Asset{}, fmt.Errorf("%d bytes exceeds %d: %w", len(data), s.maxBytes, ErrTooLarge)
	}
	mtype := mimetype.Detect(data)
	if !allowedMIME[mtype.String()] {
		return domain.Asset{}, fmt.Errorf("%s: %w", mtype.String(), ErrUnsupportedMedia)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("decode image header: %w", ErrUnsupportedMedia)
	}

	id := uuid.NewString()
	key, err := s.store.Write(ctx, path.Join(storage.PrefixUploads, id+mtype.Extension()), data)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("store upload: %w", err)
	}
	asset := domain.Asset{
		ID:         id,
		UserID:     userID,
		Kind:       kind,
		StorageKey: key,
		MIME:       mtype.String(),
		Bytes:      int64(len(data)),
		Width:      cfg.Width,
		Height:     cfg.Height,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.records.SaveAsset(ctx, asset); err != nil {
		return asset, fmt.Errorf("save asset record: %w", err)
	}
	return asset, nil
}
