package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/api/responses"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/tracing"
)

const requestIDHeader = responses.RequestIDHeader

var traceHeaders = []string{"traceparent", "tracestate"}

// RequestID tags the request with an id, echoed back in the response, and
// continues any W3C trace context the caller sent so the span injected into
// a queued order request links back to the client.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(reqID); err != nil {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			carrier := make(map[string]string, len(traceHeaders))
			for _, name := range traceHeaders {
				if value := r.Header.Get(name); value != "" {
					carrier[name] = value
				}
			}
			ctx := tracing.Extract(r.Context(), carrier)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
