package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/enghistory/internal/auth"
)

// OrganizationScopeMiddleware copies the organization header into the request context.
func OrganizationScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, err := auth.OrganizationFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if orgID != uuid.Nil {
			r = r.WithContext(auth.ContextWithOrganizationID(r.Context(), orgID))
		}
		next.ServeHTTP(w, r)
	})
}
