package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"-s", "http://10.0.0.2:8000", "-g", "10.0.0.2:50051", "-d", "kobo", "-t", "5", "-i", "10", "-o", "/tmp/q.db"},
			expected: &Config{ServerURL: "http://10.0.0.2:8000", HealthAddr: "10.0.0.2:50051", Device: "kobo",
				RequestTimeout: 5 * time.Second, OnlineCheckInterval: 10 * time.Second, OutboxPath: "/tmp/q.db"}},
		{name: "unknown flags are ignored", args: []string{"-x", "1", "-d", "kobo"},
			expected: &Config{Device: "kobo"}},
		{name: "incorrect timeout", args: []string{"-t", "abc"}, expectPanic: true},
		{name: "incorrect check interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
