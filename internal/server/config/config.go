// Package config handles configuration for the sync server, layering
// defaults, an optional JSON file, the environment (including a .env file)
// and command-line flags, in that order.
package config

import "time"

// Config holds runtime settings for the kosync server.
//
// Fields:
//   - HTTPAddr / GRPCAddr: bind addresses for the sync API and the health endpoint.
//   - Driver: storage backend name (memory, sqlite, bbolt, postgres, mongodb, redis, supabase, s3).
//   - LogLevel: debug, info, warn or error.
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
//   - HealthCheckInterval: how often the store is pinged for the health endpoint.
//   - The remaining fields configure individual drivers and are ignored by the others.
type Config struct {
	HTTPAddr            string        `env:"KOSYNC_HTTP_ADDR"`
	GRPCAddr            string        `env:"KOSYNC_GRPC_ADDR"`
	Driver              string        `env:"KOSYNC_DRIVER"`
	LogLevel            string        `env:"KOSYNC_LOG_LEVEL"`
	ShutdownTimeout     time.Duration `env:"KOSYNC_SHUTDOWN_TIMEOUT"`
	HealthCheckInterval time.Duration `env:"KOSYNC_HEALTH_CHECK_INTERVAL"`

	SQLitePath  string `env:"KOSYNC_SQLITE_PATH"`
	BoltPath    string `env:"KOSYNC_BOLT_PATH"`
	PostgresDSN string `env:"KOSYNC_POSTGRES_DSN"`

	MongoURI        string `env:"KOSYNC_MONGO_URI"`
	MongoDatabase   string `env:"KOSYNC_MONGO_DATABASE"`
	MongoCollection string `env:"KOSYNC_MONGO_COLLECTION"`

	RedisURL      string `env:"KOSYNC_REDIS_URL"`
	RedisUsername string `env:"KOSYNC_REDIS_USERNAME"`
	RedisPassword string `env:"KOSYNC_REDIS_PASSWORD"`

	SupabaseURL   string `env:"KOSYNC_SUPABASE_URL"`
	SupabaseKey   string `env:"KOSYNC_SUPABASE_KEY"`
	SupabaseTable string `env:"KOSYNC_SUPABASE_TABLE"`

	S3Bucket       string `env:"KOSYNC_S3_BUCKET"`
	S3Region       string `env:"KOSYNC_S3_REGION"`
	S3BaseEndpoint string `env:"KOSYNC_S3_BASE_ENDPOINT"`
	S3AccessKey    string `env:"KOSYNC_S3_ACCESS_KEY"`
	S3SecretKey    string `env:"KOSYNC_S3_SECRET_KEY"`
	S3Prefix       string `env:"KOSYNC_S3_PREFIX"`
}

// LoadDefaults populates Config with development defaults: an SQLite file
// under ./data and the standard ports.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8000"
	c.GRPCAddr = ":50051"
	c.Driver = "sqlite"
	c.LogLevel = "info"
	c.ShutdownTimeout = 10 * time.Second
	c.HealthCheckInterval = 15 * time.Second
	c.SQLitePath = "data/kosync.db"
	c.BoltPath = "data/kosync.bolt"
	c.MongoDatabase = "kosync"
	c.MongoCollection = "kv_store"
	c.SupabaseTable = "kv_store"
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
