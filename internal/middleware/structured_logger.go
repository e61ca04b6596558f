// file: internal/middleware/structured_logger.go
package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"planethero/internal/contextutils"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SlowRequestThreshold marks requests that are logged as slow
const SlowRequestThreshold = 2 * time.Second

// StructuredLogging logs request start and completion with the request-scoped logger
func StructuredLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := contextutils.GetRequestStart(r.Context())
			requestLogger := contextutils.GetLogger(r.Context(), logger)

			requestLogger.Debug("Request started",
				zap.String("query", r.URL.RawQuery),
				zap.String("user_agent", r.UserAgent()),
				zap.Int64("content_length", r.ContentLength),
			)

			writer := &StructuredResponseWriter{ResponseWriter: w}
			next.ServeHTTP(writer, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.Int("status", writer.Status()),
				zap.Duration("duration", duration),
				zap.Int64("response_size", writer.bytesWritten),
			}
			if s, ok := contextutils.SessionFrom(r.Context()); ok {
				fields = append(fields, zap.String("subject_id", s.SubjectID))
			}

			if ce := requestLogger.Check(getLogLevel(writer.Status()), "Request completed"); ce != nil {
				ce.Write(fields...)
			}

			if duration > SlowRequestThreshold {
				requestLogger.Warn("Slow request detected",
					zap.Duration("duration", duration),
					zap.Duration("threshold", SlowRequestThreshold),
				)
			}
		})
	}
}

// ===============================
// STRUCTURED RESPONSE WRITER
// ===============================

// StructuredResponseWriter captures the status and size of a response
type StructuredResponseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (w *StructuredResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *StructuredResponseWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	written, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(written)
	return written, err
}

// Hijack lets websocket upgrades pass through the logging middleware
func (w *StructuredResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		if w.status == 0 {
			w.status = http.StatusSwitchingProtocols
		}
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("ResponseWriter does not support hijacking")
}

func (w *StructuredResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Status returns the HTTP status code
func (w *StructuredResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func getLogLevel(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
