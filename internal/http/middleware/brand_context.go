package middleware

import (
	"net/http"
	"strings"

	"github.com/reislab/travel-platform/internal/tenancy"
)

// BrandContext copies the X-Brand-Id header into the request context so
// downstream handlers and the request logger can scope their work to a
// brand without re-reading headers.
func BrandContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if brandID := strings.TrimSpace(r.Header.Get("X-Brand-Id")); brandID != "" {
			r = r.WithContext(tenancy.WithBrandID(r.Context(), brandID))
		}
		next.ServeHTTP(w, r)
	})
}
