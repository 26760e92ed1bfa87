package handler

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset. Missing, malformed or
// out-of-range values fall back to the defaults rather than failing.
func ParsePagination(r *http.Request) PaginationParams {
	q := r.URL.Query()

	limit := queryInt(q, "limit", DefaultLimit)
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	return PaginationParams{
		Limit:  limit,
		Offset: max(queryInt(q, "offset", 0), 0),
	}
}

func queryInt(q url.Values, key string, fallback int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return fallback
	}
	return v
}
