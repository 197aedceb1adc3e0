package common

import (
	"net/http"
	"strconv"
)

// LimitOffset extracts limit and offset query parameters, applying the
// default and capping the limit.
func LimitOffset(r *http.Request, def, max int32) (limit, offset int32) {
	limit = def
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = int32(l)
	}
	if limit > max {
		limit = max
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o > 0 {
		offset = int32(o)
	}
	return
}
