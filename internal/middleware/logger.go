package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/innovatingrealm/openai-imagegen/internal/infra/geoip"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger emits one structured log line per request. When a geoip resolver is
// configured, the line is tagged with the caller's country code.
func Logger(l zerolog.Logger, resolver geoip.CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			ip := clientIPForRateLimit(r)
			event := l.Info()
			if rw.status >= http.StatusBadRequest {
				event = l.Error()
			}
			event = event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Str("client_ip", ip).
				Dur("duration", time.Since(start))
			if resolver != nil {
				if country, err := resolver.CountryCode(ip); err == nil && country != "" {
					event = event.Str("country", country)
				}
			}
			event.Msg("request")
		})
	}
}
