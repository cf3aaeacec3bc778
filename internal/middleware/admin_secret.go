package middleware

import (
	"crypto/subtle"
	"net/http"
)

const AdminSecretHeader = "X-Admin-Secret"

// AdminSecret rejects requests whose X-Admin-Secret header does not match
// secret. An empty secret locks the routes entirely.
func AdminSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				unauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
