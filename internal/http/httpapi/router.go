package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"sketch3d/internal/http/handlers"
	"sketch3d/internal/middleware"
)

// Options carries the router's collaborators. Zero values disable the
// optional pieces: no metrics endpoint, no GeoIP, no rate limit.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	RateLimit      int
	MaxBodyBytes   int64
	Metrics        middleware.HTTPRecorder
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP surface. ctx bounds background work started by
// middleware, such as the rate limiter's visitor sweep.
func NewRouter(ctx context.Context, app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, opts.RateLimit))
		if opts.MaxBodyBytes > 0 {
			r.Use(chimw.RequestSize(opts.MaxBodyBytes))
		}
		r.Post("/text-to-3d", app.TextTo3D)
		r.Post("/image-to-3d", app.ImageTo3D)
	})

	return r
}
