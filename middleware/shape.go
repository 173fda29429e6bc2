package middleware

import (
	"net/http"
	"strings"
)

// WellFormedBearer reports whether token looks like a compact JWS: three
// non-empty dot-separated base64url segments. Signatures are not checked.
func WellFormedBearer(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			c := part[i]
			switch {
			case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

// RequireBearerShape rejects requests without a well-formed bearer token
// before any key or store is consulted.
func RequireBearerShape() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "token missing")
				return
			}
			if !WellFormedBearer(token) {
				writeError(w, http.StatusUnauthorized, "token malformed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
