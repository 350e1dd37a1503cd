package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/paperlane/paperlane/pkg/requestid"
)

// RequestID puts a request id in the context and echoes it in the response.
// An inbound X-Request-Id is kept when it is well formed; otherwise chi's id or a new uuid is used.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestid.Sanitize(r.Header.Get(requestid.Header))
		if id == "" {
			id = requestid.Sanitize(middleware.GetReqID(r.Context()))
		}
		if id == "" {
			id = requestid.Generate()
		}

		w.Header().Set(requestid.Header, id)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), id)))
	})
}
