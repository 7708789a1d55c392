package middleware

import (
	"encoding/json"
	"net/http"

	"sqlward/internal/domain"
)

// CallerHeader carries the upstream-authenticated user id. Caller
// authentication is handled by the fronting proxy; this service only
// consumes the identity it asserts.
const CallerHeader = "X-User-ID"

// Caller extracts the caller identity from the request and stores it in
// the context. Requests without an identity are rejected with 401.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(CallerHeader)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"message": "missing " + CallerHeader + " header",
			})
			return
		}
		ctx := domain.WithCaller(r.Context(), domain.Caller{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
