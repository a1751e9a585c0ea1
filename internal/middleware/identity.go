// Package middleware provides HTTP middleware for the scheduler API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the owning user.
	UserIDKey ContextKey = "user_id"

	// GuestIDHeader carries the opaque per-client user token.
	GuestIDHeader = "X-Guest-ID"
)

// Identity resolves the owning user for each request. With an empty secret the
// X-Guest-ID header is used; otherwise a bearer JWT is required and its
// subject is the user.
func Identity(jwtSecret string) func(http.Handler) http.Handler {
	if jwtSecret == "" {
		return GuestIdentity
	}
	return JWTIdentity(jwtSecret)
}

// GuestIdentity takes the user from the X-Guest-ID header.
func GuestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guestID := strings.TrimSpace(r.Header.Get(GuestIDHeader))
		if guestID == "" {
			writeJSONError(w, http.StatusBadRequest, "missing X-Guest-ID header")
			return
		}
		if err := ValidateUserID(guestID); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), guestID)))
	})
}

// JWTIdentity takes the user from the subject of an HMAC-signed bearer token.
func JWTIdentity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if err := ValidateUserID(claims.Subject); err != nil {
				writeJSONError(w, http.StatusUnauthorized, "token subject: "+err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	if sink, ok := ctx.Value(userSinkKey{}).(*string); ok {
		*sink = userID
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID gets the user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
