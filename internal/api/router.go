package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	// the browser extension calls from arbitrary page origins
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Post("/analyze", apiHandler.AnalyzeHandler)
	r.Post("/report_word", apiHandler.ReportWordHandler)
	r.Get("/health", apiHandler.HealthHandler)

	// admin inspection is only mounted when a signing secret is configured
	if apiHandler.jwtSecret != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)
			r.Get("/index", apiHandler.IndexListingHandler)
			r.Get("/reports/{word}", apiHandler.WordReportsHandler)
		})
	}

	return r
}
