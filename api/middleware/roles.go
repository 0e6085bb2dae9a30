package middleware

import (
	"net/http"

	"github.com/angelmondragon/abcxyz-forecast/api/responses"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

// RequireAnyRole lets the request through when the caller holds at least one of roles.
func RequireAnyRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, held := range RolesFromContext(r.Context()) {
				for _, wanted := range roles {
					if held == wanted {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
