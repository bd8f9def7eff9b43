package handlers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"adora/internal/domain"
	"adora/internal/storage"
)

// UploadAsset returns a handler storing the multipart "file" field as an
// asset of the given kind.
func (a *App) UploadAsset(kind domain.AssetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Room for multipart framing on top of the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadSize+1<<20)
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload too large")
				return
			}
			a.error(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, a.MaxUploadSize+1))
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
			return
		}

		asset, err := a.Assets.Upload(r.Context(), r.FormValue("user_id"), kind, data)
		if err != nil {
			if asset.StorageKey == "" {
				a.fail(w, r, err)
				return
			}
			a.Logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("asset stored without record")
		}
		a.Logger.Info().Str("asset_id", asset.ID).Str("kind", string(kind)).Int64("bytes", asset.Bytes).Msg("asset uploaded")
		a.json(w, http.StatusCreated, map[string]any{
			"status":  "ok",
			"file_id": asset.ID,
			"path":    asset.StorageKey,
			"kind":    asset.Kind,
			"mime":    asset.MIME,
			"bytes":   asset.Bytes,
			"width":   asset.Width,
			"height":  asset.Height,
		})
	}
}

var proxyPrefixes = []string{storage.PrefixUploads + "/", storage.PrefixRenders + "/", storage.PrefixAudit + "/"}

// FileProxy serves a stored object by key, e.g. a creative path returned by
// Render.
func (a *App) FileProxy(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimLeft(strings.TrimSpace(r.URL.Query().Get("path")), "/")
	if key == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "path required")
		return
	}
	allowed := false
	for _, p := range proxyPrefixes {
		if strings.HasPrefix(key, p) {
			allowed = true
			break
		}
	}
	if !allowed {
		a.error(w, http.StatusBadRequest, "bad_request", "path outside served directories")
		return
	}
	data, err := a.Files.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidKey) {
			a.error(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
