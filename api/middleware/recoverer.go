package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/uporders-backend/api/responses"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
)

// Recoverer converts a handler panic into a 500 envelope, unless the handler
// already started its response. http.ErrAbortHandler keeps propagating so
// net/http drops the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := panicError(v)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"method": r.Method, "path": r.URL.Path})
				}
				if rec.status != 0 {
					if logg != nil {
						logg.Error(ctx, "handler panicked after writing response", err)
					}
					return
				}
				// WriteError logs 5xx with the stack, which still holds the panicking frames here.
				responses.WriteError(ctx, logg, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "handler panicked"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return errors.New(fmt.Sprint("panic: ", v))
}
