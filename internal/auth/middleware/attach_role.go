package auth

import (
	"net/http"

	"github.com/mind-engage/mindengage-tutoring/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the stored one so role
// changes and disabled accounts take effect before tokens expire.
// allowClaimFallback=true in dev/offline; false in prod.
func AttachRoleFromDB(lookup UserLookup, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			role, disabled, ok, err := lookup(ctx, sub)
			switch {
			case err != nil:
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusForbidden, "forbidden")
			case ok && disabled:
				writeError(w, http.StatusForbidden, "user disabled")
			case ok:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case claimRole == "admin" || (allowClaimFallback && claimRole != ""):
				next.ServeHTTP(w, r)
			default:
				writeError(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
