package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by the CLI.
const (
	FlagAPIURL    = "api-url"
	FlagToken     = "token"
	FlagUserID    = "user"
	FlagProjectID = "project"
	FlagStateDir  = "state-dir"
	FlagLogLevel  = "log-level"
	FlagFormat    = "format"
	FlagPretty    = "pretty"
	FlagTimeout   = "timeout"
)

// BindFlags registers the global flags on fs. Their defaults are empty so an unset flag
// never masks a value from a lower layer.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagAPIURL, "", "Task API base URL (env: "+EnvAPIURL+")")
	fs.String(FlagToken, "", "Bearer token (env: "+EnvToken+")")
	fs.String(FlagUserID, "", "Current user id (env: "+EnvUserID+")")
	fs.String(FlagProjectID, "", "Project id filter (env: "+EnvProjectID+")")
	fs.String(FlagStateDir, "", "Local state directory (env: "+EnvStateDir+")")
	fs.String(FlagLogLevel, "", "Log level: debug|info|warn|error")
	fs.String(FlagFormat, "", "Output format: json|edn")
	fs.Bool(FlagPretty, false, "Pretty-print output")
	fs.Duration(FlagTimeout, 0, "Request timeout")
}

// ApplyFlags copies flags the user actually set on top of cfg.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagAPIURL:    &cfg.APIURL,
		FlagToken:     &cfg.Token,
		FlagUserID:    &cfg.UserID,
		FlagProjectID: &cfg.ProjectID,
		FlagStateDir:  &cfg.StateDir,
		FlagLogLevel:  &cfg.Log.Level,
		FlagFormat:    &cfg.Output.Format,
	}
	for name, dst := range strs {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if f := fs.Lookup(FlagPretty); f != nil && f.Changed {
		v, err := fs.GetBool(FlagPretty)
		if err != nil {
			return err
		}
		cfg.Output.Pretty = v
	}
	if f := fs.Lookup(FlagTimeout); f != nil && f.Changed {
		v, err := fs.GetDuration(FlagTimeout)
		if err != nil {
			return err
		}
		if v > 0 {
			cfg.Timeout = v
		}
	}
	cfg.StateDir = expandHome(cfg.StateDir)
	return cfg.Validate()
}
