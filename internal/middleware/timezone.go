package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/capitalize-ai/scheduling-agent/internal/timeutil"
)

const (
	// LocationKey is the context key for the session timezone.
	LocationKey ContextKey = "location"

	// TimezoneHeader lets clients name their zone when allowed.
	TimezoneHeader = "X-Timezone"
)

// Timezone resolves the session zone once per request. The deployment zone
// is used unless allowClient is set and the request carries a valid
// X-Timezone header.
func Timezone(deployment *time.Location, allowClient bool) func(http.Handler) http.Handler {
	if deployment == nil {
		deployment = time.UTC
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := deployment
			if allowClient {
				if name := strings.TrimSpace(r.Header.Get(TimezoneHeader)); name != "" {
					if requested, err := timeutil.LoadZone(name); err == nil {
						loc = requested
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), LocationKey, loc)))
		})
	}
}

// GetLocation returns the session zone, or UTC when none was resolved.
func GetLocation(ctx context.Context) *time.Location {
	if loc, ok := ctx.Value(LocationKey).(*time.Location); ok && loc != nil {
		return loc
	}
	return time.UTC
}
