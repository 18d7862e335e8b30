// Package server exposes a small HTTP status endpoint reporting the gateway
// connection state and cache statistics of a running bot.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Guliveer/guildkit/internal/cache"
	"github.com/Guliveer/guildkit/internal/constants"
	"github.com/Guliveer/guildkit/internal/logger"
)

// Source reports the live state served by the status endpoints.
type Source interface {
	GatewayState() string
	LastConnected() time.Time
	CacheStats() map[string]cache.Stats
}

// StatusServer serves the health and cache JSON endpoints.
type StatusServer struct {
	addr   string
	log    *logger.Logger
	source Source
	now    func() time.Time
	srv    *http.Server
}

// NewStatusServer creates a StatusServer bound to addr.
func NewStatusServer(addr string, source Source, log *logger.Logger) *StatusServer {
	if log == nil {
		log = logger.Nop()
	}
	s := &StatusServer{
		addr:   addr,
		log:    log,
		source: source,
		now:    time.Now,
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           withLogging(log, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return s
}

// Handler returns the routes without the listener, for embedding and tests.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/cache", s.handleCache)
	mux.HandleFunc("GET /api/cache/{kind}", s.handleCacheKind)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs graceful shutdown when the context is done.
func (s *StatusServer) Run(ctx context.Context) error {
	s.log.Info("Status server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("status server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Status server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
