// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fuseforge/fuseforge/internal/auth"
	"github.com/fuseforge/fuseforge/internal/observability"
)

type claimsKey struct{}

// claimsFromContext returns the verified session claims for a request.
func claimsFromContext(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.SessionClaims)
	return claims, ok
}

// requireSession verifies the bearer token and stores the claims in the
// request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, &claims)))
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records per-route request counts and latency.
func instrument(metrics *observability.Metrics, route string, next http.HandlerFunc) http.HandlerFunc {
	if metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
