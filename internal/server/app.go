// Package server wires configuration, the storage driver, the services and
// the HTTP and gRPC front ends into a runnable application with graceful
// shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/kosync/internal/logging"
	"github.com/dmitrijs2005/kosync/internal/server/auth"
	"github.com/dmitrijs2005/kosync/internal/server/config"
	"github.com/dmitrijs2005/kosync/internal/server/httpapi"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
	"github.com/dmitrijs2005/kosync/internal/server/kv/drivers"
	"github.com/dmitrijs2005/kosync/internal/server/services"

	gs "github.com/dmitrijs2005/kosync/internal/server/grpc"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	store           kv.Store
	authorizer      *auth.Authorizer
	userService     *services.UserService
	progressService *services.ProgressService
}

// NewApp selects the storage driver named in c. The store is not contacted
// until Run.
func NewApp(c *config.Config, out io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(out, c.LogLevel)

	store, err := drivers.Open(c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return &App{
		config:          c,
		logger:          logger,
		store:           store,
		authorizer:      auth.NewAuthorizer(store),
		userService:     services.NewUserService(store),
		progressService: services.NewProgressService(store),
	}, nil
}

// initSignalHandler cancels on the first termination signal. The returned
// channel is closed once the handler has stopped listening, which happens
// on a signal or when ctx is done.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.config.ShutdownTimeout, app.logger,
		app.authorizer, app.userService, app.progressService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.store, app.config.HealthCheckInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run initializes the store, serves until ctx is cancelled or a signal
// arrives, then closes the store.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "driver", app.config.Driver)

	if err := app.store.Init(ctx); err != nil {
		app.logger.Error(ctx, "storage init failed", "driver", app.config.Driver, "error", err)
		return fmt.Errorf("storage init error: %w", err)
	}

	signalsDone := app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	cancelFunc()
	<-signalsDone

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
	defer cancel()

	if err := app.store.Close(closeCtx); err != nil {
		app.logger.Error(ctx, "storage close failed", "error", err)
		return err
	}

	app.logger.Info(ctx, "Stopped")
	return nil
}
