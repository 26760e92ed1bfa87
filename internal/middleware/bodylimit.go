package middleware

import (
	"net/http"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/httputil"
)

// DefaultMaxBodySize covers every JSON payload the API accepts, webhook
// deliveries included.
const DefaultMaxBodySize int64 = 64 << 10

// BodyLimitMiddleware rejects oversized requests up front when the client
// declares a Content-Length, and caps the reader for chunked bodies.
type BodyLimitMiddleware struct {
	limit int64
}

func NewBodyLimitMiddleware(limit int64) *BodyLimitMiddleware {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{limit: limit}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.limit {
			httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
				apperrors.ValidationError("Request body too large"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, m.limit)
		next.ServeHTTP(w, r)
	})
}
