package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Limit: DefaultLimit}},
		{"?limit=50&offset=100", PaginationParams{Limit: 50, Offset: 100}},
		{"?limit=0", PaginationParams{Limit: DefaultLimit}},
		{"?limit=1000", PaginationParams{Limit: DefaultLimit}},
		{"?limit=abc&offset=-5", PaginationParams{Limit: DefaultLimit}},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/"+tc.query, nil)
			assert.Equal(t, tc.want, ParsePagination(req))
		})
	}
}
