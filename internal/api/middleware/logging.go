package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/engine/internal/metrics"
	"github.com/learnhub/engine/pkg/logger"
	"go.uber.org/zap"
)

// Logging logs each request with its request ID and records it under the
// matched route pattern. m may be nil.
func Logging(m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			dur := time.Since(start)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.RecordHTTP(r.Method, route, rw.status, dur)

			fields := []zap.Field{
				zap.String("id", GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", rw.status),
				zap.Duration("duration", dur),
				zap.String("remote", r.RemoteAddr),
			}
			if rw.status >= http.StatusInternalServerError {
				logger.L().Warn("request", fields...)
				return
			}
			logger.L().Info("request", fields...)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
