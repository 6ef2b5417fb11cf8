package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codemonkey800/claude-code-web/internal/errors"
)

func TestApplyDefaults(t *testing.T) {
	opts := &Options{}
	opts.ApplyDefaults()

	require.NotNil(t, opts.Logger)
	require.Equal(t, DefaultKillTimeout, opts.KillTimeout)
	require.Equal(t, DefaultQueryTimeout, opts.QueryTimeout)
	require.Equal(t, DefaultMaxLineSize, opts.MaxLineSize)
	require.NoError(t, opts.Validate())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	opts := &Options{KillTimeout: 2 * time.Second, QueryTimeout: time.Minute}
	opts.ApplyDefaults()

	require.Equal(t, 2*time.Second, opts.KillTimeout)
	require.Equal(t, time.Minute, opts.QueryTimeout)
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		kill    time.Duration
		query   time.Duration
		wantErr string
	}{
		{name: "lower bounds", kill: time.Second, query: 30 * time.Second},
		{name: "upper bounds", kill: 30 * time.Second, query: 10 * time.Minute},
		{name: "kill too short", kill: 500 * time.Millisecond, query: time.Minute, wantErr: "kill timeout"},
		{name: "kill too long", kill: time.Minute, query: time.Minute, wantErr: "kill timeout"},
		{name: "query too short", kill: time.Second, query: 10 * time.Second, wantErr: "query timeout"},
		{name: "query too long", kill: time.Second, query: time.Hour, wantErr: "query timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &Options{KillTimeout: tt.kill, QueryTimeout: tt.query}

			err := opts.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.ErrorContains(t, err, tt.wantErr)

			_, ok := stderrors.AsType[*errors.ConfigError](err)
			require.True(t, ok)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("45")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, d)

	d, err = ParseDuration(" 2m ")
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, d)

	_, err = ParseDuration("0")
	require.Error(t, err)

	_, err = ParseDuration("-5s")
	require.Error(t, err)

	_, err = ParseDuration("soon")
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvQueryTimeout: "90",
		EnvKillTimeout:  "3s",
		EnvCliPath:      "/opt/claude",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]

		return v, ok
	}

	opts := &Options{}
	require.NoError(t, opts.ApplyEnv(lookup))
	require.Equal(t, 90*time.Second, opts.QueryTimeout)
	require.Equal(t, 3*time.Second, opts.KillTimeout)
	require.Equal(t, "/opt/claude", opts.CliPath)
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == EnvKillTimeout {
			return "later", true
		}

		return "", false
	}

	opts := &Options{}
	err := opts.ApplyEnv(lookup)
	require.ErrorContains(t, err, EnvKillTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude-web.toml")
	content := `
cli_path = "/usr/local/bin/claude"
model = "sonnet"
kill_timeout = "4s"
query_timeout = "2m"
serialize_queries = true

[env]
ANTHROPIC_LOG = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := LoadFile(path)
	require.NoError(t, err)

	opts := &Options{Env: map[string]string{"KEEP": "1"}}
	require.NoError(t, f.Apply(opts))

	require.Equal(t, "/usr/local/bin/claude", opts.CliPath)
	require.Equal(t, "sonnet", opts.Model)
	require.Equal(t, 4*time.Second, opts.KillTimeout)
	require.Equal(t, 2*time.Minute, opts.QueryTimeout)
	require.True(t, opts.SerializeQueries)
	require.Equal(t, map[string]string{"KEEP": "1", "ANTHROPIC_LOG": "debug"}, opts.Env)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "reading config")

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = "), 0o600))

	_, err = LoadFile(path)
	require.ErrorContains(t, err, "parsing config")
}

func TestFileApply_InvalidDuration(t *testing.T) {
	f := &File{QueryTimeout: "whenever"}

	err := f.Apply(&Options{})
	require.ErrorContains(t, err, "query_timeout")
}
