package config

import (
	"fmt"
	"maps"
	"os"

	"github.com/BurntSushi/toml"
)

// File is the on-disk TOML configuration.
//
//	cli_path = "/usr/local/bin/claude"
//	model = "sonnet"
//	kill_timeout = "5s"
//	query_timeout = "5m"
//	serialize_queries = true
//
//	[env]
//	ANTHROPIC_LOG = "debug"
type File struct {
	CliPath          string            `toml:"cli_path"`
	Model            string            `toml:"model"`
	KillTimeout      string            `toml:"kill_timeout"`
	QueryTimeout     string            `toml:"query_timeout"`
	SerializeQueries bool              `toml:"serialize_queries"`
	SkipVersionCheck bool              `toml:"skip_version_check"`
	Env              map[string]string `toml:"env"`
}

// LoadFile reads and parses a TOML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var f File
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return &f, nil
}

// Apply copies the file's non-empty values onto o.
func (f *File) Apply(o *Options) error {
	if f.CliPath != "" {
		o.CliPath = f.CliPath
	}

	if f.Model != "" {
		o.Model = f.Model
	}

	if f.KillTimeout != "" {
		d, err := ParseDuration(f.KillTimeout)
		if err != nil {
			return fmt.Errorf("kill_timeout: %w", err)
		}

		o.KillTimeout = d
	}

	if f.QueryTimeout != "" {
		d, err := ParseDuration(f.QueryTimeout)
		if err != nil {
			return fmt.Errorf("query_timeout: %w", err)
		}

		o.QueryTimeout = d
	}

	if f.SerializeQueries {
		o.SerializeQueries = true
	}

	if f.SkipVersionCheck {
		o.SkipVersionCheck = true
	}

	if len(f.Env) > 0 {
		if o.Env == nil {
			o.Env = make(map[string]string, len(f.Env))
		}

		maps.Copy(o.Env, f.Env)
	}

	return nil
}
