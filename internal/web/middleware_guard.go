package web

import (
	"net/http"
	"time"

	"github.com/sibylchat/sibyl/internal/defense"
)

// guardMiddleware feeds every served request to the scanner guard and
// rejects requests from IPs it has already blocked. The filtered
// listener drops new connections from blocked IPs; this middleware
// covers connections that were open when the block landed.
func (s *Server) guardMiddleware(next http.Handler) http.Handler {
	if s.guard == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if s.guard.IsBlocked(ip) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		lw := &accessLogResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)

		s.guard.Observe(ip, defense.Request{
			Path:       r.URL.Path,
			Method:     r.Method,
			StatusCode: lw.statusCode,
			UserAgent:  r.UserAgent(),
			Timestamp:  time.Now(),
		})
	})
}
