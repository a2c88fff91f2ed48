// Package sink implements a local development ingestion endpoint for bug
// reports. It accepts the same wire format the SDK submits, keeps a bounded
// in-memory history, and streams accepted reports to SSE subscribers. It is
// a development tool, not a production backend: nothing is persisted and
// there is no authentication.
package sink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Config holds configuration for the sink server.
type Config struct {
	Host     string
	Port     int
	Capacity int // stored report ceiling, DefaultCapacity when zero
}

// Server is the development sink HTTP server.
type Server struct {
	config     Config
	router     *chi.Mux
	store      *Store
	stream     *hub
	log        zerolog.Logger
	httpServer *http.Server
	mu         sync.Mutex
}

// NewServer creates a sink server. The logger is used for request and
// ingestion logging.
func NewServer(config Config, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// CORS - restricted to localhost only
	r.Use(corsMiddleware())

	s := &Server{
		config: config,
		router: r,
		store:  NewStore(config.Capacity),
		stream: newHub(log),
		log:    log,
	}

	s.registerRoutes()

	return s
}

// requestLogger returns a middleware that logs one line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// corsMiddleware returns a CORS middleware restricted to localhost
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if isLocalhostOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isLocalhostOrigin checks if the origin is from localhost.
// It validates that the origin is exactly a localhost address (with optional port).
func isLocalhostOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	localhostPrefixes := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
		"http://[::1]",
		"https://[::1]",
	}

	for _, prefix := range localhostPrefixes {
		if origin == prefix {
			return true
		}
		if strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// registerRoutes sets up all sink routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/reports", s.createReport)
		r.Get("/reports", s.listReports)
		r.Delete("/reports", s.clearReports)
		r.Get("/reports/stream", s.streamReports)
		r.Get("/reports/{id}", s.getReport)
		r.Delete("/reports/{id}", s.deleteReport)
	})
}

// Handler returns the sink's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the underlying report store.
func (s *Server) Store() *Store {
	return s.store
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.Addr()

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable for SSE
		IdleTimeout:  60 * time.Second,
	}
	server := s.httpServer
	s.mu.Unlock()

	s.log.Info().Str("addr", addr).Msg("sink listening")

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes stream
// subscriptions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.httpServer
	s.mu.Unlock()

	s.stream.closeAll()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
