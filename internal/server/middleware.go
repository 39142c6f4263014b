package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder remembers the status code a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// corsMiddleware sets the CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// instrument records request count and latency under the route name, so
// unknown paths do not create new label values.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	}
}

// rateLimitMiddleware charges each request to its client address. Requests
// pass untouched when no limit is configured.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}

		err := s.rateLimiter.Allow(getClientIP(r), max(r.ContentLength, 0))
		if err == nil {
			next(w, r)
			return
		}

		var rle *RateLimitError
		var qe *QuotaExceededError
		switch {
		case errors.As(err, &rle):
			rateLimitHits.WithLabelValues(rle.Type).Inc()
			w.Header().Set("X-RateLimit-Type", rle.Type)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rle.RetryAfter.Seconds()))
		case errors.As(err, &qe):
			rateLimitHits.WithLabelValues(qe.Type).Inc()
			w.Header().Set("X-Quota-Type", qe.Type)
			w.Header().Set("X-Quota-Limit", strconv.FormatInt(qe.Limit, 10))
			w.Header().Set("X-Quota-Used", strconv.FormatInt(qe.Used, 10))
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", time.Until(qe.Resets).Seconds()))
		}
		s.log().Warn("Request limited", "client", getClientIP(r), "reason", err)
		s.writeErrorResponse(w, err.Error(), http.StatusTooManyRequests)
	}
}

// getClientIP prefers proxy headers over the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
