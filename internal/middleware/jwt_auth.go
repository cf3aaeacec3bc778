package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	CtxUserID ctxKey = "user_id"
	CtxEmail  ctxKey = "email"
)

// AuthCookie carries the session token for browser clients.
const AuthCookie = "auth_token"

// JWTAuth accepts a session token from the Authorization bearer header or,
// failing that, from the auth_token cookie.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := tokenFromRequest(r)
			if !ok {
				unauthorized(w, "Authentication required")
				return
			}

			sub, email, msg := parseSession(tokenString, secret)
			if msg != "" {
				unauthorized(w, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sub, email)))
		})
	}
}

// OptionalJWT identifies the caller when a valid session token is present
// and otherwise passes the request through anonymously. Handlers that need
// an identity check UserIDFromContext themselves.
func OptionalJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString, ok := tokenFromRequest(r); ok {
				if sub, email, msg := parseSession(tokenString, secret); msg == "" {
					r = r.WithContext(withSession(r.Context(), sub, email))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseSession returns the token's subject and email, or a client facing
// message explaining why the token was refused.
func parseSession(tokenString, secret string) (sub, email, msg string) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil || token == nil || !token.Valid {
		return "", "", "Invalid token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", "Invalid token claims"
	}

	sub, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	if sub == "" {
		return "", "", "Invalid token subject"
	}
	return sub, email, ""
}

func withSession(ctx context.Context, sub, email string) context.Context {
	ctx = context.WithValue(ctx, CtxUserID, sub)
	return context.WithValue(ctx, CtxEmail, email)
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if c, err := r.Cookie(AuthCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// UserIDFromContext returns the subject set by JWTAuth or OptionalJWT.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CtxUserID).(string)
	return id, ok && id != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
