package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/abcxyz-forecast/api/responses"
	pkgAuth "github.com/angelmondragon/abcxyz-forecast/pkg/auth"
	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with its subject and roles.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject())
			ctx = WithRoles(ctx, claims.Roles...)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.Subject())
				ctx = logg.WithRole(ctx, joinRoles(claims.Roles))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	token := strings.TrimSpace(header)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

func joinRoles(roles []enums.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
