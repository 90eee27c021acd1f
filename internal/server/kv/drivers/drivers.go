// Package drivers maps the configured driver name to a kv.Store. The choice
// is made once at startup; consumers only ever see kv.Store.
package drivers

import (
	"fmt"
	"sort"

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

type constructor func(c *config.Config) kv.Store

var registry = map[string]constructor{
	"memory": func(c *config.Config) kv.Store { return memory.New() },
	"sqlite": func(c *config.Config) kv.Store { return sqlite.New(c.SQLitePath) },
	"bbolt":  func(c *config.Config) kv.Store { return bbolt.New(c.BoltPath) },
	"postgres": func(c *config.Config) kv.Store {
		return postgres.New(c.PostgresDSN)
	},
	"mongodb": func(c *config.Config) kv.Store {
		return mongodb.New(mongodb.Options{
			URI:        c.MongoURI,
			Database:   c.MongoDatabase,
			Collection: c.MongoCollection,
		})
	},
	"redis": func(c *config.Config) kv.Store {
		return redis.New(redis.Options{
			URL:      c.RedisURL,
			Username: c.RedisUsername,
			Password: c.RedisPassword,
		})
	},
	"supabase": func(c *config.Config) kv.Store {
		return supabase.New(supabase.Options{
			URL:   c.SupabaseURL,
			Key:   c.SupabaseKey,
			Table: c.SupabaseTable,
		})
	},
	"s3": func(c *config.Config) kv.Store {
		return s3.New(s3.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Prefix:       c.S3Prefix,
		})
	},
}

// Names lists the supported driver names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the uninitialized store selected by c.Driver. The caller runs
// Init before use and Close on shutdown.
func Open(c *config.Config) (kv.Store, error) {
	ctor, ok := registry[c.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q (supported: %v)", c.Driver, Names())
	}
	return ctor(c), nil
}
