package log

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paperlane/paperlane/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one line per request once the handler returns. 5xx are errors, 4xx warnings,
// and repeated polling requests drop to debug.
func Logger(l *zap.Logger, name string) func(next http.Handler) http.Handler {
	if l == nil {
		panic("log.Logger received a nil *zap.Logger")
	}

	logger := l.WithOptions(zap.AddCallerSkip(1)).Named(name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				fields := []zap.Field{
					zap.String("type", "http_request"),
					zap.String("request_id", requestid.FromContext(r.Context())),
					zap.String("http_method", r.Method),
					zap.String("http_path", r.URL.Path),
					zap.String("route", routePattern(r)),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("http_status_code", status),
					zap.Int("response_bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("user_agent", r.UserAgent()),
				}

				if ce := logger.Check(requestLevel(r, status), fmt.Sprintf("%s %s", r.Method, r.URL.Path)); ce != nil {
					ce.Write(fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// ConditionalLogger returns the request logger only when the level is debug or trace.
func ConditionalLogger(logLevel string, l *zap.Logger, name string) func(next http.Handler) http.Handler {
	if l == nil {
		panic("log.ConditionalLogger received a nil *zap.Logger")
	}

	level := strings.ToLower(logLevel)
	if level == "debug" || level == "trace" {
		l.Named(name).Info("HTTP request logging enabled")
		return Logger(l, name)
	}

	l.Named(name).Info("HTTP request logging disabled")
	return func(next http.Handler) http.Handler {
		return next
	}
}

func requestLevel(r *http.Request, status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case isQuiet(r.Method, r.URL.Path):
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// isQuiet matches requests that clients repeat on a timer: health probes and process status polling.
func isQuiet(method string, path string) bool {
	if method != http.MethodGet {
		return false
	}
	return path == "/health" || path == "/metrics" || strings.HasSuffix(path, "/process-status")
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
