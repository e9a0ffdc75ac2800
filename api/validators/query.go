package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/pagination"
)

// maxCursorLength is well above any cursor the API issues.
const maxCursorLength = 256

// ParsePage reads the limit and cursor query parameters of a list endpoint.
// The cursor is only bounded here; its contents are checked by the service.
func ParsePage(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if len(cursor) > maxCursorLength {
		return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "cursor too long").
			WithDetails(map[string]any{"field": "cursor"})
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// HeaderValue returns the trimmed header, or a validation error when it is
// longer than maxLen.
func HeaderValue(r *http.Request, name string, maxLen int) (string, error) {
	value := strings.TrimSpace(r.Header.Get(name))
	if maxLen > 0 && len(value) > maxLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" header too long").
			WithDetails(map[string]any{"header": name, "max": maxLen})
	}
	return value, nil
}
