package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/kosync/internal/flagx"
)

// parseFlags overlays -s, -g, -d, -t, -i and -o. Other arguments are filtered out with
// flagx.FilterArgs first.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-g", "-d", "-t", "-i", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base URL of the sync server")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "host:port of the gRPC health endpoint")
	fs.StringVar(&cfg.Device, "d", cfg.Device, "device name reported with progress")
	fs.StringVar(&cfg.OutboxPath, "o", cfg.OutboxPath, "file queueing pushes made while offline (empty disables)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
