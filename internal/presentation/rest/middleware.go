package rest

import (
	"net/http"

	"github.com/google/uuid"

	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// TenantHeader carries the caller's tenant id on every API request.
const TenantHeader = "X-Tenant-ID"

// WithTenant rejects requests without a well-formed tenant header and stores
// the id on the request context for the repositories' scoped sessions.
func WithTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TenantHeader)
		if raw == "" {
			badRequest(w, "missing "+TenantHeader+" header")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			badRequest(w, "malformed "+TenantHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(pgshared.WithTenant(r.Context(), tenantID)))
	})
}
