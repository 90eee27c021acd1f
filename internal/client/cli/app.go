// Package cli implements the interactive kosync client: a small REPL that
// registers accounts, logs in and pushes or pulls reading progress.
package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/kosync/internal/client/client"
	"github.com/dmitrijs2005/kosync/internal/client/config"
	"github.com/dmitrijs2005/kosync/internal/client/outbox"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// healthChecker is the part of client.HealthChecker the app uses.
type healthChecker interface {
	Check(ctx context.Context) (string, error)
	Close() error
}

type App struct {
	config *config.Config
	client client.Client
	health healthChecker
	outbox outbox.Repository
	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	mode     Mode
	userName string

	// serializes outbox delivery between the REPL and the watcher
	flushMu sync.Mutex
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout, c.RetryMax)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	if c.HealthAddr != "" {
		hc, err := client.NewHealthChecker(c.HealthAddr)
		if err != nil {
			app.close()
			return nil, err
		}
		app.health = hc
	}

	if c.OutboxPath != "" {
		ob, err := outbox.Open(context.Background(), c.OutboxPath)
		if err != nil {
			app.close()
			return nil, err
		}
		app.outbox = ob
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.close()
	a.Root(ctx)
}

func (a *App) close() {
	_ = a.client.Close()
	if a.health != nil {
		_ = a.health.Close()
	}
	if a.outbox != nil {
		_ = a.outbox.Close()
	}
}

func (a *App) user() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userName = name
}

func (a *App) isLoggedIn() bool {
	return a.user() != ""
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

// probe pings the server once and records the resulting mode. Queued
// pushes are delivered whenever the server answers.
func (a *App) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.client.Ping(pingCtx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
		return
	}

	a.setMode(ModeOnline)
	a.flush(ctx)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
