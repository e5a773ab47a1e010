package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
)

// LockService is the hub as seen by the API.
type LockService interface {
	LockEntities() []application.LockEntity
	LockEntity(uniqueID string) (application.LockEntity, bool)
	Execute(ctx context.Context, cmd *domain.Command) (string, error)
}

// Options configures the API server. Non-positive limits disable the
// corresponding rate limiter.
type Options struct {
	Addr                  string
	AuthToken             string
	CommandsPerMinute     int
	AuthFailuresPerMinute int
	// TrustProxyHeaders keys rate limits on X-Forwarded-For / X-Real-IP
	// instead of the peer address.
	TrustProxyHeaders bool
}

type Server struct {
	addr           string
	authToken      string
	trustProxy     bool
	service        LockService
	logger         *slog.Logger
	commandLimiter *RateLimiter
	authFailures   *RateLimiter
	router         http.Handler

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(opts Options, service LockService, logger *slog.Logger) *Server {
	s := &Server{
		addr:           opts.Addr,
		authToken:      opts.AuthToken,
		trustProxy:     opts.TrustProxyHeaders,
		service:        service,
		logger:         logger,
		commandLimiter: NewRateLimiter(opts.CommandsPerMinute, time.Minute),
		authFailures:   NewRateLimiter(opts.AuthFailuresPerMinute, time.Minute),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/locks", s.handleListLocks)
		r.Route("/locks/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLock)

			r.Group(func(r chi.Router) {
				r.Use(s.commandLimiter.Middleware(s.clientIP))
				r.Post("/lock", s.handleCommand(domain.ActionLock))
				r.Post("/unlock", s.handleCommand(domain.ActionUnlock))
			})
		})
	})

	return r
}

func (s *Server) clientIP(r *http.Request) string {
	return clientIP(r, s.trustProxy)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP API starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}
