// Package config loads settings for the kosync command-line client.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (LoadDefaults).
//  2. Optional JSON file named by -c / -config.
//  3. Command-line flags: -s server URL, -g gRPC health address, -d device
//     name, -t request timeout in seconds, -i online check interval in seconds,
//     -o outbox file.
//
// JSON example:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "health_addr": "127.0.0.1:50051",
//	  "device": "kosync-cli",
//	  "request_timeout": "10s",
//	  "retry_max": 3,
//	  "online_check_interval": "30s",
//	  "outbox_path": "kosync-outbox.db"
//	}
package config

import "time"

// Config holds runtime settings for the CLI. An empty HealthAddr skips the
// gRPC probe in the health command; an empty OutboxPath disables queueing
// pushes while the server is unreachable.
type Config struct {
	ServerURL      string
	HealthAddr     string
	Device         string
	RequestTimeout time.Duration
	RetryMax       int

	OnlineCheckInterval time.Duration
	OutboxPath          string
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.Device = "kosync-cli"
	c.RequestTimeout = 10 * time.Second
	c.RetryMax = 3
	c.OnlineCheckInterval = 30 * time.Second
	c.OutboxPath = "kosync-outbox.db"
}

// LoadConfig applies defaults, then the JSON file, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
