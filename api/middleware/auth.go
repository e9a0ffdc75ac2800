package middleware

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/uporders-backend/api/responses"
	pkgAuth "github.com/angelmondragon/uporders-backend/pkg/auth"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
)

// Auth requires a valid bearer token and puts the caller's identity on the
// request context. Handlers never read identity from request bodies.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="uporders"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="uporders", error="invalid_token"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, tokenErrorMessage(err)))
				return
			}

			ctx := WithActor(r.Context(), Actor{CustomerID: claims.CustomerID, Role: claims.Role})
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"customer_id": claims.CustomerID.String(),
					"actor_role":  string(claims.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, pkgAuth.ErrInvalidClaims):
		return "token identity invalid"
	}
	return "invalid token"
}
