package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS admits the configured browser origins. The token and request id
// headers are both accepted and exposed.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader, TokenHeader},
		ExposedHeaders:   []string{requestIDHeader, TokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
