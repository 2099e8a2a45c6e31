package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
)

var devOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// CORS applies the storefront origin policy. Dev environments without an
// explicit list accept any local port.
func CORS(app config.AppConfig) func(http.Handler) http.Handler {
	origins := app.CORSOrigins
	if len(origins) == 0 && app.IsDev() {
		origins = devOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After", idempotencyReplayHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
