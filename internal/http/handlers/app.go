package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"adora/internal/assets"
	"adora/internal/domain"
	"adora/internal/encode"
	"adora/internal/pipeline"
)

// maxJSONBody bounds validate/autofix/render request bodies.
const maxJSONBody = 8 << 20

// Files is the read side of the artifact store.
type Files interface {
	Read(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	DirExists(prefix string) bool
}

type App struct {
	Pipeline      *pipeline.Service
	Assets        *assets.Service
	Files         Files
	Records       domain.RecordStore
	Logger        zerolog.Logger
	MaxUploadSize int64
	// Components is reported by Health; main fills it at startup.
	Components map[string]bool
}

func NewApp(p *pipeline.Service, a *assets.Service, files Files, records domain.RecordStore, logger zerolog.Logger) *App {
	if records == nil {
		records = domain.NopRecordStore{}
	}
	return &App{
		Pipeline:      p,
		Assets:        a,
		Files:         files,
		Records:       records,
		Logger:        logger,
		MaxUploadSize: 20 << 20,
		Components:    map[string]bool{},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]string{"error": kind, "message": msg})
}

// fail maps pipeline errors onto status codes.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCanvas):
		a.error(w, http.StatusBadRequest, "invalid_canvas", err.Error())
	case errors.Is(err, domain.ErrUnsupportedFormat):
		a.error(w, http.StatusBadRequest, "unsupported_format", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, assets.ErrTooLarge):
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
	case errors.Is(err, assets.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", err.Error())
	case errors.Is(err, encode.ErrEncodeFailed):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("encode failed")
		a.error(w, http.StatusInternalServerError, "encode_failed", "failed to encode creative")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusServiceUnavailable, "timeout", "request cancelled")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
		case errors.Is(err, io.EOF):
			a.error(w, http.StatusBadRequest, "bad_request", "empty request body")
		case errors.Is(err, domain.ErrInvalidCanvas):
			a.error(w, http.StatusBadRequest, "invalid_canvas", err.Error())
		default:
			a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid json: %v", err))
		}
		return false
	}
	return true
}
