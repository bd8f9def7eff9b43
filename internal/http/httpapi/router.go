package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"adora/internal/domain"
	"adora/internal/http/handlers"
	"adora/internal/middleware"
)

// Options tunes the middleware chain.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMin    int
}

func NewRouter(app *handlers.App, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	// Health
	r.Get("/health", app.Health)
	r.Get("/v1/healthz", app.Health)

	r.Get("/presets", app.Presets)
	r.Get("/file_proxy", app.FileProxy)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Post("/validate", app.Validate)
		r.Post("/autofix", app.AutoFix)
		r.Post("/render", app.Render)

		r.Post("/upload", app.UploadAsset(domain.AssetKindImage))
		r.Post("/upload/packshot", app.UploadAsset(domain.AssetKindPackshot))
		r.Post("/upload/background", app.UploadAsset(domain.AssetKindBackground))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/renders/{render_id}/bundle", app.RenderBundle)
		r.Get("/canvases/{canvas_id}/renders", app.CanvasRenders)
	})

	return r
}
