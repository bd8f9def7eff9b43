package handlers

import (
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"adora/internal/storage"
	"adora/pkg/zip"
)

var renderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// RenderBundle zips every artifact of a render together with its audit files.
func (a *App) RenderBundle(w http.ResponseWriter, r *http.Request) {
	renderID := chi.URLParam(r, "render_id")
	if !renderIDPattern.MatchString(renderID) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid render_id")
		return
	}
	keys, err := a.Files.List(r.Context(), path.Join(storage.PrefixRenders, renderID))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(keys) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "render not found")
		return
	}
	auditKeys, err := a.Files.List(r.Context(), storage.PrefixAudit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	for _, key := range auditKeys {
		base := path.Base(key)
		if strings.HasSuffix(base, "_"+renderID+"_audit.json") || strings.HasSuffix(base, "_"+renderID+"_audit.csv") {
			keys = append(keys, key)
		}
	}

	entries := make([]zip.Asset, 0, len(keys))
	for _, key := range keys {
		data, err := a.Files.Read(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("bundle entry skipped")
			continue
		}
		entries = append(entries, zip.Asset{Filename: path.Base(key), MIME: mimetype.Detect(data).String(), Data: data})
	}
	archive, err := zip.ArchiveAssets(entries)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=render-%s.zip", renderID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) CanvasRenders(w http.ResponseWriter, r *http.Request) {
	canvasID := chi.URLParam(r, "canvas_id")
	if canvasID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "canvas_id required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.Records.ListRenders(r.Context(), canvasID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"canvas_id": canvasID, "items": items})
}
