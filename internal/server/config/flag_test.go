package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8081", "-g", ":6000", "-k", "postgres",
				"-d", "postgres://db", "-f", "/var/lib/kosync.db", "-l", "debug",
			},
			expected: &Config{
				HTTPAddr:    "127.0.0.1:8081",
				GRPCAddr:    ":6000",
				Driver:      "postgres",
				PostgresDSN: "postgres://db",
				SQLitePath:  "/var/lib/kosync.db",
				LogLevel:    "debug",
			},
		},
		{
			name:     "foreign flags ignored",
			args:     []string{"-c", "cfg.json", "-x", "1", "-k", "memory"},
			expected: &Config{Driver: "memory"},
		},
		{
			name:        "missing value panics",
			args:        []string{"-k"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)

			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}

			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
