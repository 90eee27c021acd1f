package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvFileVar names an alternative dotenv file; ".env" is used otherwise.
const EnvFileVar = "KOSYNC_ENV_FILE"

// parseEnv loads the dotenv file if present, without overriding variables
// already set, then overlays every KOSYNC_* variable onto config. Unset
// variables leave fields untouched.
func parseEnv(config *Config) {
	file := os.Getenv(EnvFileVar)
	if file == "" {
		file = ".env"
	}

	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
