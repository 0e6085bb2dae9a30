package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

// RequestIDHeader is read from callers and echoed on every response.
const RequestIDHeader = "X-Request-Id"

const maxRequestIDLength = 128

// RequestID tags the request context with a caller supplied id, or a fresh uuid when the
// header is missing or not a short printable token.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if !acceptableRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
