package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps a handler with a permissive cross-origin policy, matching the
// control surface's expectation that any local UI can reach it.
func CORS(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	return c.Handler(next)
}
