package handlers

import (
	"net/http"
	"time"

	"adora/internal/storage"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]bool, len(a.Components)+3)
	for name, ok := range a.Components {
		components[name] = ok
	}
	for _, prefix := range []string{storage.PrefixUploads, storage.PrefixRenders, storage.PrefixAudit} {
		components[prefix+"_dir"] = a.Files.DirExists(prefix)
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}
