package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AccessKey guards the API with a static bearer key. An empty key leaves
// the API open, which is the local single-user default.
func AccessKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := r.Header.Get("Authorization")
			if hdr == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing access key"})
				return
			}
			scheme, token, ok := strings.Cut(hdr, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "malformed authorization header"})
				return
			}
			if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(key)) != 1 {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
