// Package httpapi serves the KOReader sync protocol over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/dmitrijs2005/kosync/internal/logging"
	"github.com/dmitrijs2005/kosync/internal/server/auth"
	"github.com/dmitrijs2005/kosync/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	address         string
	shutdownTimeout time.Duration
	logger          logging.Logger
	authorizer      *auth.Authorizer
	users           *services.UserService
	progress        *services.ProgressService
}

func NewServer(address string, shutdownTimeout time.Duration, l logging.Logger, a *auth.Authorizer, us *services.UserService, ps *services.ProgressService) *Server {
	return &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		logger:          l.With("module", "http_server"),
		authorizer:      a,
		users:           us,
		progress:        ps,
	}
}

// Handler builds the routing tree, everything mounted under common.APIBasePath.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.accessLog, s.recoverer, etag, s.authorize)

	r.Route(common.APIBasePath, func(r chi.Router) {
		r.Get("/healthcheck", s.handleHealthcheck)

		r.Post("/users/create", s.handleCreateUser)
		r.Get("/users/auth", s.handleAuthUser)

		r.Put("/syncs/progress", s.handleUpdateProgress)
		r.Get("/syncs/progress/{document}", s.handleGetProgress)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
