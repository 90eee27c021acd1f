package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv_Variables(t *testing.T) {
	t.Setenv(EnvFileVar, "does-not-exist.env")
	t.Setenv("KOSYNC_DRIVER", "s3")
	t.Setenv("KOSYNC_S3_BUCKET", "progress")
	t.Setenv("KOSYNC_SHUTDOWN_TIMEOUT", "30s")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "s3", cfg.Driver)
	assert.Equal(t, "progress", cfg.S3Bucket)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, ":8000", cfg.HTTPAddr, "unset variables keep the current value")
}

func Test_parseEnv_DotenvFile(t *testing.T) {
	const name = "KOSYNC_SUPABASE_URL"
	if _, ok := os.LookupEnv(name); ok {
		t.Skipf("%s already set in the environment", name)
	}
	t.Cleanup(func() { _ = os.Unsetenv(name) })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(name+"=https://project.supabase.co\n"), 0o600))
	t.Setenv(EnvFileVar, path)

	cfg := &Config{}
	parseEnv(cfg)

	assert.Equal(t, "https://project.supabase.co", cfg.SupabaseURL)
}

func Test_parseEnv_InvalidDurationPanics(t *testing.T) {
	t.Setenv(EnvFileVar, "does-not-exist.env")
	t.Setenv("KOSYNC_HEALTH_CHECK_INTERVAL", "often")

	assert.Panics(t, func() { parseEnv(&Config{}) })
}
