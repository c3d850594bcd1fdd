package middleware

import (
	"net/http"

	"estate-graphql/internal/loader"
)

// LoaderRegistryMiddleware gives every request a fresh loader registry, so
// batched results are never shared between requests.
func LoaderRegistryMiddleware(dispatchConcurrency int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			registry := loader.NewRegistry(dispatchConcurrency)
			next.ServeHTTP(w, r.WithContext(loader.WithRegistry(r.Context(), registry)))
		})
	}
}
