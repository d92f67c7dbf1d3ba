// Package config resolves taskboard settings. Sources are applied in order, later ones
// winning: built-in defaults, the TOML config file, a .env file, the process environment,
// and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"taskboard/internal/statusutil"
)

const (
	DefaultAPIURL    = "http://127.0.0.1:8787"
	DefaultTimeout   = 15 * time.Second
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultFormat    = "json"
	DefaultDevAddr   = "127.0.0.1:8787"
	DefaultDevUser   = "1"
)

type Config struct {
	APIURL    string        `toml:"api_url"`
	Token     string        `toml:"token"`
	UserID    string        `toml:"user_id"`
	ProjectID string        `toml:"project_id"`
	Timeout   time.Duration `toml:"timeout"`

	// StateDir holds board.sqlite (local card order).
	StateDir string `toml:"state_dir"`

	Log      LogConfig    `toml:"log"`
	Output   OutputConfig `toml:"output"`
	Statuses StatusConfig `toml:"statuses"`
	Dev      DevConfig    `toml:"dev_server"`

	// Path is the config file that was read, if any.
	Path string `toml:"-"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type OutputConfig struct {
	Format string `toml:"format"`
	Pretty bool   `toml:"pretty"`
}

// StatusConfig overrides the status naming conventions (see statusutil.Rules).
type StatusConfig struct {
	Waiting string         `toml:"waiting"`
	Final   []string       `toml:"final"`
	Ranks   map[string]int `toml:"ranks"`
}

type DevConfig struct {
	Addr      string `toml:"addr"`
	User      string `toml:"user"`
	Token     string `toml:"token"`
	JWTSecret string `toml:"jwt_secret"`
	JWKSURL   string `toml:"jwks_url"`
	RedisURL  string `toml:"redis_url"`
}

func Default() *Config {
	return &Config{
		APIURL:  DefaultAPIURL,
		Timeout: DefaultTimeout,
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Output:  OutputConfig{Format: DefaultFormat},
		Dev:     DevConfig{Addr: DefaultDevAddr, User: DefaultDevUser},
	}
}

// Options controls where Load looks. Zero values mean the standard locations.
type Options struct {
	// Path is an explicit config file; it must exist.
	Path string
	// Dotenv is the .env file to read; defaults to ./.env and may be missing.
	Dotenv string
	// Lookup reads the environment; defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func Load(opts Options) (*Config, error) {
	cfg := Default()

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenvPath := opts.Dotenv
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	dotenv, err := readDotenv(dotenvPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dotenvPath, err)
	}
	env := layered(lookup, dotenv)

	path, required := opts.Path, opts.Path != ""
	if !required {
		if v, ok := env(EnvConfig); ok && strings.TrimSpace(v) != "" {
			path, required = strings.TrimSpace(v), true
		} else if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := loadFile(cfg, path, required); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath is <user config dir>/taskboard/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskboard", "config.toml"), nil
}

func loadFile(cfg *Config, path string, required bool) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "taskboard")
	}
	return filepath.Join(os.TempDir(), "taskboard")
}

func finalize(cfg *Config) error {
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	cfg.StateDir = expandHome(cfg.StateDir)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg.Validate()
}

// Validate checks enumerated fields. It runs again after flags are applied.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "json", "edn":
	default:
		return fmt.Errorf("invalid output format %q (want json|edn)", c.Output.Format)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text|json)", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// Rules turns the [statuses] table into status rules.
func (c *Config) Rules() statusutil.Rules {
	return statusutil.NewRules(c.Statuses.Ranks, c.Statuses.Final, c.Statuses.Waiting)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
