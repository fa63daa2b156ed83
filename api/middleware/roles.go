package middleware

import (
	"net/http"
	"slices"

	"github.com/laggedout/storefront-backend/api/responses"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

// RequireRole admits callers whose token carries one of roles. It must sit
// behind Auth; a request with no role at all is treated as unauthenticated.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			switch {
			case role == "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing role claim"))
			case !slices.Contains(roles, role):
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
						WithDetails(map[string]any{"role": role}))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
