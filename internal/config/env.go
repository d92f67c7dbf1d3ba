package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvConfig    = "TASKBOARD_CONFIG"
	EnvAPIURL    = "TASKBOARD_API_URL"
	EnvToken     = "TASKBOARD_TOKEN"
	EnvUserID    = "TASKBOARD_USER_ID"
	EnvProjectID = "TASKBOARD_PROJECT_ID"
	EnvStateDir  = "TASKBOARD_STATE_DIR"
	EnvLogLevel  = "TASKBOARD_LOG_LEVEL"
	EnvLogFormat = "TASKBOARD_LOG_FORMAT"
	EnvFormat    = "TASKBOARD_FORMAT"
	EnvPretty    = "TASKBOARD_PRETTY"
	EnvTimeout   = "TASKBOARD_TIMEOUT"
	EnvRedisURL  = "TASKBOARD_REDIS_URL"
	EnvJWTSecret = "TASKBOARD_JWT_SECRET"
)

// readDotenv parses a .env file without touching the process environment.
func readDotenv(path string) (map[string]string, error) {
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return vals, err
}

// layered looks a key up in the environment first, then in the .env values.
func layered(lookup func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvAPIURL, &cfg.APIURL)
	str(EnvToken, &cfg.Token)
	str(EnvUserID, &cfg.UserID)
	str(EnvProjectID, &cfg.ProjectID)
	str(EnvStateDir, &cfg.StateDir)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)
	str(EnvFormat, &cfg.Output.Format)
	str(EnvRedisURL, &cfg.Dev.RedisURL)
	str(EnvJWTSecret, &cfg.Dev.JWTSecret)

	if v, ok := env(EnvPretty); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPretty, err)
		}
		cfg.Output.Pretty = b
	}
	if v, ok := env(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// parseTimeout accepts a Go duration ("20s") or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
