// Package api implements the NeuralOS REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the browser origins accepted when none are configured.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// CORS returns middleware allowing credentialed requests from origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// standard is the middleware stack shared by every route.
func standard(origins []string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		CORS(origins),
	}
}
