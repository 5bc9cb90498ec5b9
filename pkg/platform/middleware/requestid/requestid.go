package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"rentgate/pkg/requestcontext"
)

const Header = "X-Request-Id"

// Middleware assigns each request a correlation ID, honoring one supplied by
// the client, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}
