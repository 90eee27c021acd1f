package drivers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kosync/internal/server/config"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
	"github.com/dmitrijs2005/kosync/internal/server/kv/bbolt"
	"github.com/dmitrijs2005/kosync/internal/server/kv/memory"
	"github.com/dmitrijs2005/kosync/internal/server/kv/mongodb"
	"github.com/dmitrijs2005/kosync/internal/server/kv/postgres"
	"github.com/dmitrijs2005/kosync/internal/server/kv/redis"
	"github.com/dmitrijs2005/kosync/internal/server/kv/s3"
	"github.com/dmitrijs2005/kosync/internal/server/kv/sqlite"
	"github.com/dmitrijs2005/kosync/internal/server/kv/supabase"
)

func TestOpen_SelectsDriverByName(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "kosync.db")

	tests := []struct {
		name string
		want kv.Store
	}{
		{"memory", &memory.Store{}},
		{"sqlite", &sqlite.Store{}},
		{"bbolt", &bbolt.Store{}},
		{"postgres", &postgres.Store{}},
		{"mongodb", &mongodb.Store{}},
		{"redis", &redis.Store{}},
		{"supabase", &supabase.Store{}},
		{"s3", &s3.Store{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Driver = tt.name
			s, err := Open(cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{Driver: "duckdb"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"duckdb"`)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestNames_Sorted(t *testing.T) {
	assert.Equal(t, []string{"bbolt", "memory", "mongodb", "postgres", "redis", "s3", "sqlite", "supabase"}, Names())
}

func TestAllDriversImplementOptionalCapabilities(t *testing.T) {
	for _, name := range Names() {
		s, err := Open(&config.Config{Driver: name})
		require.NoError(t, err)
		_, creator := s.(kv.Creator)
		_, pinger := s.(kv.Pinger)
		assert.True(t, creator, "%s must implement kv.Creator", name)
		assert.True(t, pinger, "%s must implement kv.Pinger", name)
	}
}
