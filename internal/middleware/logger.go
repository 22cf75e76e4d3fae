package middleware

import (
	"net/http"
	"time"

	"codequill/internal/logger"
	"codequill/internal/metrics"

	"go.uber.org/zap"
)

// Logging пишет строку на каждый HTTP-запрос и кормит метрики.
func Logging(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lrw, r)

			duration := time.Since(start)
			if collector != nil {
				collector.RecordHTTP(lrw.statusCode, duration)
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", duration),
			}

			if rid, ok := r.Context().Value(ContextRequestID).(string); ok {
				fields = append(fields, zap.String("request_id", rid))
			}
			if userID, ok := r.Context().Value(ContextUserID).(int); ok {
				fields = append(fields, zap.Int("user_id", userID))
			}
			if role, ok := r.Context().Value(ContextRole).(string); ok {
				fields = append(fields, zap.String("role", role))
			}

			logger.Log.Info("HTTP-запрос", fields...)
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
