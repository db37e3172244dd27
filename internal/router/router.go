package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dbcontext"
)

// Prefix is the path every route is mounted below.
const Prefix = "/pitchfork-api-persistence"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets the response headers of a JSON API.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			// over TLS only
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware turns a bearer token signed with secret into the
// application context of the request. Requests without a valid token are
// rejected; paths in open skip the check. An empty secret disables it.
func AuthMiddleware(logger *zap.SugaredLogger, secret []byte, open ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range open {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ac, err := appctx.ParseToken(strings.TrimSpace(raw), secret)
			if err != nil {
				logger.Debugw("rejected token", "err", err, "path", r.URL.Path)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(appctx.With(r.Context(), ac)))
		})
	}
}

// Options configures RegisterRoutes.
type Options struct {
	// JWTSecret enables bearer authentication when non-empty.
	JWTSecret []byte
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes mounts health, metrics and the record gateway on a ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, db *dbcontext.DbContext, opts Options) http.Handler {
	mux := http.NewServeMux()

	health := Prefix + "/health"
	mux.HandleFunc("GET "+health, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	metricsPath := Prefix + "/metrics"
	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	dbcontext.NewHandler(db, logger).Register(mux, Prefix)

	auth := AuthMiddleware(logger, opts.JWTSecret, health, metricsPath)
	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(auth(mux)))
}
