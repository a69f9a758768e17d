package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/innovatingrealm/openai-imagegen/internal/http/handlers"
	"github.com/innovatingrealm/openai-imagegen/internal/infra/geoip"
	appmw "github.com/innovatingrealm/openai-imagegen/internal/middleware"
	"github.com/innovatingrealm/openai-imagegen/internal/ratelimit"
)

// NewRouter assembles the HTTP surface. The health and root routes stay
// outside the rate limit so monitors always get an answer.
func NewRouter(app *handlers.App, logger zerolog.Logger, limiter *ratelimit.Limiter, resolver geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		appmw.CORS(app.Config.CORSAllowedOrigins),
		appmw.Logger(logger, resolver),
		appmw.RateLimit(limiter, "/health", "/"),
	)

	r.Get("/", app.Root)
	r.Get("/health", app.Health)

	r.Route("/api/v1/images", func(r chi.Router) {
		r.Post("/generate", app.Generate)
		r.Post("/generate-with-reference", app.GenerateWithReference)
		r.Post("/generate-with-multiple-references", app.GenerateWithMultipleReferences)
		r.Post("/gpt-image-generate-with-url", app.GPTImageWithURL)
		r.Post("/gpt-image-generate-with-multiple-urls", app.GPTImageWithMultipleURLs)
		r.Post("/gpt-image-generate-json", app.GPTImageJSON)
		r.Post("/edit", app.Edit)
		r.Post("/variations", app.Variations)
		r.Get("/archive", app.Archive)
	})

	return r
}
