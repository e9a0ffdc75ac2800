package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets browser clients submit and poll orders. Retry-After is exposed so
// a throttled client can back off without parsing the body.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			"Idempotency-Key", "X-Request-Id", "traceparent", "tracestate",
		},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
