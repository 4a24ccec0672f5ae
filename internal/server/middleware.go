package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// authenticated enforces the shared secret when one is configured. The check
// is constant-time; an unset secret disables auth entirely.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := s.cfg.Server.SharedSecret
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		provided := r.Header.Get("X-App-Secret")
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":  "unauthorized",
				"reason": "invalid_app_secret",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited applies the best-effort per-client window when a limit is
// configured. The table is pruned lazily on every request.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.cfg.Server.RateLimitPerMin
		if limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		id := clientID(r)
		now := time.Now()
		s.counter.Prune(now)
		if count := s.counter.Increment(id, now); count > limit {
			zap.L().Info("server: rate limited", zap.String("client", id), zap.Int("count", count))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": "rate_limited",
				"limit": limit,
				"ip":    id,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID identifies the caller: first X-Forwarded-For hop when present,
// otherwise the connection address without its port.
func clientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
