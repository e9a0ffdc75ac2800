package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/uporders-backend/api/responses"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
)

// RequireRole admits only callers whose token role is one of roles.
func RequireRole(logg *logger.Logger, roles ...enums.CustomerRole) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed = append(allowed, string(role))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !slices.Contains(roles, actor.Role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"allowed_roles": allowed}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
