package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/kosync/internal/flagx"
	"github.com/dmitrijs2005/kosync/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15s" and integer nanoseconds are accepted.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	GRPCAddr            string         `json:"grpc_addr"`
	Driver              string         `json:"driver"`
	LogLevel            string         `json:"log_level"`
	ShutdownTimeout     timex.Duration `json:"shutdown_timeout"`
	HealthCheckInterval timex.Duration `json:"health_check_interval"`
	SQLitePath          string         `json:"sqlite_path"`
	BoltPath            string         `json:"bolt_path"`
	PostgresDSN         string         `json:"postgres_dsn"`
	MongoURI            string         `json:"mongo_uri"`
	MongoDatabase       string         `json:"mongo_database"`
	MongoCollection     string         `json:"mongo_collection"`
	RedisURL            string         `json:"redis_url"`
	RedisUsername       string         `json:"redis_username"`
	RedisPassword       string         `json:"redis_password"`
	SupabaseURL         string         `json:"supabase_url"`
	SupabaseKey         string         `json:"supabase_key"`
	SupabaseTable       string         `json:"supabase_table"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Prefix            string         `json:"s3_prefix"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:            c.HTTPAddr,
		GRPCAddr:            c.GRPCAddr,
		Driver:              c.Driver,
		LogLevel:            c.LogLevel,
		ShutdownTimeout:     timex.Duration{Duration: c.ShutdownTimeout},
		HealthCheckInterval: timex.Duration{Duration: c.HealthCheckInterval},
		SQLitePath:          c.SQLitePath,
		BoltPath:            c.BoltPath,
		PostgresDSN:         c.PostgresDSN,
		MongoURI:            c.MongoURI,
		MongoDatabase:       c.MongoDatabase,
		MongoCollection:     c.MongoCollection,
		RedisURL:            c.RedisURL,
		RedisUsername:       c.RedisUsername,
		RedisPassword:       c.RedisPassword,
		SupabaseURL:         c.SupabaseURL,
		SupabaseKey:         c.SupabaseKey,
		SupabaseTable:       c.SupabaseTable,
		S3Bucket:            c.S3Bucket,
		S3Region:            c.S3Region,
		S3BaseEndpoint:      c.S3BaseEndpoint,
		S3AccessKey:         c.S3AccessKey,
		S3SecretKey:         c.S3SecretKey,
		S3Prefix:            c.S3Prefix,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCAddr = j.GRPCAddr
	c.Driver = j.Driver
	c.LogLevel = j.LogLevel
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
	c.HealthCheckInterval = j.HealthCheckInterval.Duration
	c.SQLitePath = j.SQLitePath
	c.BoltPath = j.BoltPath
	c.PostgresDSN = j.PostgresDSN
	c.MongoURI = j.MongoURI
	c.MongoDatabase = j.MongoDatabase
	c.MongoCollection = j.MongoCollection
	c.RedisURL = j.RedisURL
	c.RedisUsername = j.RedisUsername
	c.RedisPassword = j.RedisPassword
	c.SupabaseURL = j.SupabaseURL
	c.SupabaseKey = j.SupabaseKey
	c.SupabaseTable = j.SupabaseTable
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Prefix = j.S3Prefix
}

// parseJson overlays values from the file named by -c/-config. Keys missing
// from the file keep their current values. An unreadable or malformed file
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
