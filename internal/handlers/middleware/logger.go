package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type logData struct {
	responseStatus int
	responseSize   int
}

type logWriter struct {
	http.ResponseWriter
	data logData
}

func (w *logWriter) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.data.responseSize += size
	return size, err
}

func (w *logWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.data.responseStatus = statusCode
}

// Log every request, server errors on error level
// Requests traced by an outer otelhttp handler also get trace_id
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK, responseSize: 0},
			}

			next.ServeHTTP(lw, r)

			log := l.Info
			if lw.data.responseStatus >= http.StatusInternalServerError {
				log = l.Error
			}
			args := []any{
				"method", r.Method,
				"uri", r.RequestURI,
				"duration", time.Since(start),
				"status", lw.data.responseStatus,
				"size", lw.data.responseSize,
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				args = append(args, "trace_id", sc.TraceID().String())
			}
			log("got HTTP request", args...)
		})
	}
}
