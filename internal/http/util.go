package httpx

import (
	"net/http"
	"strconv"
	"strings"
)

// Substrings of the validation messages the service layer produces. Errors
// matching one of these are caller mistakes and map to 400 rather than 5xx.
var validationErrorPatterns = []string{ //nolint:gochecknoglobals // read-only pattern table
	"is required",
	"cannot be empty",
	"cannot exceed",
	"at least one field must be updated",
	"must be between",
	"must be >=",
	"may only contain",
	"must be manual or admin",
	"invalid link state",
	"invalid source type",
	"invalid job type",
	"is not on a crawlable platform",
}

func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range validationErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ParseLimitOffset reads limit/offset query params, falling back to defLimit
// and clamping into [1, maxLimit] / [0, inf). Unparseable values fall back
// rather than erroring; list endpoints should not 400 on a bad page size.
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	limit := intQuery(r, "limit", defLimit)
	offset := intQuery(r, "offset", 0)

	limit = min(limit, max(maxLimit, 1))
	return max(limit, 1), max(offset, 0)
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
