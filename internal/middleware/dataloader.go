package middleware

import (
	"net/http"

	"github.com/rpattn/enghistory/internal/repository"
	"github.com/rpattn/enghistory/internal/versionloader"
)

// VersionLoaderMiddleware attaches a fresh version loader to every request
func VersionLoaderMiddleware(repo repository.EntityRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := versionloader.NewVersionLoader(repo)
			ctx := versionloader.WithLoader(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
