package router

import (
	"log"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/loveuconvert/imageconvert/internal/config"
	"github.com/loveuconvert/imageconvert/internal/ratelimit"
	"github.com/loveuconvert/imageconvert/internal/transport/handler"
)

func NewRouter(h *handler.Handler, limiter *ratelimit.Limiter, cfg *config.CORSConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}))

	r.Get("/", h.Index)

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.Get("/health", h.Health)
		r.Post("/convert", h.Convert)
		r.Get("/download/single/{fileId}/{format}", h.DownloadSingle)
		r.Get("/download/zip/{fileIds}/{format}", h.DownloadZip)
	})

	r.NotFound(h.NotFound)

	return r
}

func allowedOrigins(cfg *config.CORSConfig) []string {
	if cfg.Environment == "production" {
		return cfg.AllowedOrigins
	}
	return []string{"*"}
}

// recoverer turns panics into an opaque 500 JSON body; the detail goes to
// the server log and Sentry only.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[router] panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				sentry.CurrentHub().Recover(rec)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"success":false,"error":"Internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
