package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/kosync/internal/flagx"
	"github.com/dmitrijs2005/kosync/internal/timex"
)

// JsonConfig is the file shape. Keys missing from the file leave the
// current values alone.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	HealthAddr     string         `json:"health_addr"`
	Device         string         `json:"device"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	RetryMax       int            `json:"retry_max"`

	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	OutboxPath          string         `json:"outbox_path"`
}

func parseJson(cfg *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	jc := JsonConfig{
		ServerURL:      cfg.ServerURL,
		HealthAddr:     cfg.HealthAddr,
		Device:         cfg.Device,
		RequestTimeout: timex.Duration{Duration: cfg.RequestTimeout},
		RetryMax:       cfg.RetryMax,

		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
		OutboxPath:          cfg.OutboxPath,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.HealthAddr = jc.HealthAddr
	cfg.Device = jc.Device
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.RetryMax = jc.RetryMax
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	cfg.OutboxPath = jc.OutboxPath
}
