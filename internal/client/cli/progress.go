package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/kosync/internal/client/client"
)

var (
	errPushUsage = errors.New("usage: push <document> <percentage> <progress>")
	errPullUsage = errors.New("usage: pull <document>")
)

// Push sends a reading position. The progress argument may contain spaces;
// everything after the percentage is taken verbatim.
func (a *App) Push(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errPushUsage
	}

	pct, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %q: %w", args[1], err)
	}

	p := client.Progress{
		Document:   args[0],
		Percentage: pct,
		Progress:   strings.Join(args[2:], " "),
		Device:     a.config.Device,
	}

	res, err := a.client.Push(ctx, p)
	if errors.Is(err, client.ErrUnavailable) && a.outbox != nil && a.isLoggedIn() {
		a.setMode(ModeOffline)
		return a.queue(ctx, a.user(), p)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Saved %s at %s\n", res.Document, formatTimestamp(res.Timestamp))
	return nil
}

func (a *App) Pull(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errPullUsage
	}

	p, err := a.client.Pull(ctx, args[0])
	if err != nil {
		return err
	}

	if p.Document == "" {
		fmt.Fprintf(a.out, "No progress stored for %s\n", args[0])
		return nil
	}

	fmt.Fprintf(a.out, "Document:   %s\n", p.Document)
	fmt.Fprintf(a.out, "Percentage: %s\n", strconv.FormatFloat(p.Percentage, 'f', -1, 64))
	fmt.Fprintf(a.out, "Progress:   %s\n", p.Progress)
	fmt.Fprintf(a.out, "Device:     %s\n", p.Device)
	if p.DeviceID != "" {
		fmt.Fprintf(a.out, "Device ID:  %s\n", p.DeviceID)
	}
	if p.Timestamp != 0 {
		fmt.Fprintf(a.out, "Updated:    %s\n", formatTimestamp(p.Timestamp))
	}
	return nil
}

// Health reports the HTTP healthcheck and, when configured, the gRPC
// health status.
func (a *App) Health(ctx context.Context) error {
	httpErr := a.client.Ping(ctx)
	if httpErr != nil {
		a.setMode(ModeOffline)
		fmt.Fprintf(a.out, "http: %v\n", httpErr)
	} else {
		a.setMode(ModeOnline)
		fmt.Fprintln(a.out, "http: OK")
	}

	if a.health == nil {
		return httpErr
	}

	status, err := a.health.Check(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "grpc: %v\n", err)
		return errors.Join(httpErr, err)
	}
	fmt.Fprintf(a.out, "grpc: %s\n", status)
	return httpErr
}

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).Local().Format(time.DateTime)
}
