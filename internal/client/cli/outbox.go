package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dmitrijs2005/kosync/internal/client/client"
)

// queue stores p for later delivery when the server could not be reached.
func (a *App) queue(ctx context.Context, user string, p client.Progress) error {
	if err := a.outbox.Put(ctx, user, p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Server unavailable, queued %s for later delivery\n", p.Document)
	return nil
}

// flush delivers the logged-in user's queued pushes, oldest first. It stops
// at the first outage; pushes the server rejects are dropped.
func (a *App) flush(ctx context.Context) {
	if a.outbox == nil {
		return
	}
	user := a.user()
	if user == "" {
		return
	}

	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	pending, err := a.outbox.List(ctx, user)
	if err != nil {
		log.Printf("outbox: %v", err)
		return
	}

	for _, p := range pending {
		_, err := a.client.Push(ctx, p)
		if errors.Is(err, client.ErrUnavailable) {
			a.setMode(ModeOffline)
			return
		}
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotLoggedIn) {
			return
		}
		if err != nil {
			log.Printf("outbox: dropping %s: %v", p.Document, err)
		} else {
			fmt.Fprintf(a.out, "Delivered queued progress for %s\n", p.Document)
		}

		if err := a.outbox.Delete(ctx, user, p.Document); err != nil {
			log.Printf("outbox: %v", err)
			return
		}
	}
}
