// Package server exposes the HTTP API: health, status, metrics, the detection
// session endpoints, forum, AI orchestration and the live fan feed. It includes
// permissive CORS for development and injects correlation IDs into request
// contexts for consistent logging.
package server

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Grace-Shao/aiatl2025/backend/config"
	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// The provided context bounds the websocket hub and rate limiter cleanup goroutines.
func NewMux(ctx context.Context, cfg *config.Config, db *sql.DB) http.Handler {
	authCfg := loadAuthConfig()
	rateLimiterCfg := loadRateLimiterConfig()
	corsCfg := loadCORSConfig()
	rateLimiter := newIPRateLimiter(ctx, rateLimiterCfg)

	handlers := NewHandlers(ctx, cfg, db)

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health and readiness endpoints
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/status", handlers.HandleStatus)

	// Detection session endpoints
	mux.HandleFunc("/session/start", handlers.HandleSessionStart)
	mux.HandleFunc("/session/stop", handlers.HandleSessionStop)
	mux.HandleFunc("/session/clock", handlers.HandleSessionClock)
	mux.HandleFunc("/session/timeline", handlers.HandleTimeline)
	mux.HandleFunc("/session/timeline/stream", handlers.HandleTimelineStream)
	mux.HandleFunc("/session/ws", handlers.HandleWS)

	// Forum endpoints
	mux.HandleFunc("/forum/threads", handlers.HandleThreads)
	mux.HandleFunc("/forum/threads/", handlers.HandleThreadsDispatcher)
	mux.HandleFunc("/forum/comments/", handlers.HandleCommentsDispatcher)

	// AI and PR drafting endpoints
	mux.HandleFunc("/ai/orchestrate", handlers.HandleOrchestrate)
	mux.HandleFunc("/pr/generate", handlers.HandlePRGenerate)
	mux.HandleFunc("/pr/publish", handlers.HandlePRPublish)

	// Pairing session review endpoints
	mux.HandleFunc("/sessions", handlers.HandlePairSessions)
	mux.HandleFunc("/sessions/", handlers.HandlePairSessionsDispatcher)
	mux.HandleFunc("/highlights", handlers.HandleHighlights)

	// Fan feed endpoints
	mux.HandleFunc("/feed", handlers.HandleFeed)
	mux.HandleFunc("/feed/stream", handlers.HandleFeedStream)

	// Admin endpoints
	mux.HandleFunc("/admin/feed/record", handlers.HandleAdminFeedRecord)

	// Selective middleware: admin endpoints get auth plus rate limiting, the
	// model-spending AI/PR endpoints get rate limiting only.
	selectiveHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/admin/") {
			adminAuth(rateLimitMiddleware(mux, rateLimiter), authCfg).ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/ai/") || strings.HasPrefix(r.URL.Path, "/pr/") ||
			r.URL.Path == "/highlights" || strings.HasPrefix(r.URL.Path, "/sessions/") {
			rateLimitMiddleware(mux, rateLimiter).ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selectiveHandler.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		if wrappedWriter.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", wrappedWriter.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker so websocket upgrades pass through.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("hijack not supported")
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, cfg *config.Config, db *sql.DB, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, cfg, db),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE and websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// WithoutCancel inherits context values but lets shutdown complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
