// Package server exposes a node over HTTP: pool figures, account reads,
// address derivation, transaction submission and the journal.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lugondev/go-cash/internal/common"
	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/node"
)

// Server serves one node.
type Server struct {
	common.LoggerMixin

	node   *node.Node
	cfg    config.ServerConfig
	router chi.Router
}

func New(n *node.Node, cfg config.ServerConfig, logger *slog.Logger) *Server {
	s := &Server{
		LoggerMixin: common.NewLoggerMixin(),
		node:        n,
		cfg:         cfg,
	}
	if logger != nil {
		s.SetLogger(logger.With("component", "server"))
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/pools/{amm}/{mint}", s.getPool)
		r.Get("/accounts/{address}", s.getAccount)
		r.Get("/derive", s.derive)
		r.Post("/transactions", s.submitTransaction)
		r.Get("/transactions/{signature}", s.getTransaction)
		r.Get("/events/{name}", s.listEvents)
	})
	if prom := s.node.Prometheus(); prom != nil {
		r.Handle("/metrics", prom.Handler())
	}
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  seconds(s.cfg.ReadTimeout, 15),
		WriteTimeout: seconds(s.cfg.WriteTimeout, 15),
	}

	errCh := make(chan error, 1)
	go func() {
		s.GetLogger().Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.GetLogger().Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.GetLogger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
