// Package server wires the render handlers into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/query_graph/internal/handler"
	"github.com/atlekbai/query_graph/internal/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	addr    string
	handler *handler.Handler
	logger  *slog.Logger
}

func New(addr string, h *handler.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{addr: addr, handler: h, logger: logger}
}

// Routes returns the router serving the render API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
	)

	r.Get("/healthz", s.handler.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Post("/render", s.handler.Render)
		r.Post("/render/batch", s.handler.RenderBatch)
		r.Get("/catalog/{object}", s.handler.Object)
	})
	return r
}

// Serve listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
