package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*app.Logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/metrics", app.MetricsHandler)

	r.Route("/v1", func(r chi.Router) {
		// Health
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))

			r.Post("/storyboards", app.Storyboards)
			r.Post("/voice", app.Voice)
			r.Post("/avatar-videos", app.AvatarVideos)
			r.Post("/avatars", app.Avatars)
			r.Get("/avatars", app.ListAvatars)
			r.Get("/voices", app.ListVoices)
			r.Post("/videos", app.Videos)

			r.Route("/estimates", func(r chi.Router) {
				r.Post("/avatar-video", app.EstimateAvatarVideo)
				r.Post("/video", app.EstimateVideo)
			})
		})
	})

	return r
}
