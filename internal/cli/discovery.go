package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/codemonkey800/claude-code-web/internal/errors"
)

const (
	// MinimumVersion is the oldest CLI release with stream-json input support.
	MinimumVersion = "2.0.0"

	// VersionCheckTimeout bounds the `claude -v` probe.
	VersionCheckTimeout = 2 * time.Second

	// EnvSkipVersionCheck disables the version probe when set to any value.
	EnvSkipVersionCheck = "CLAUDE_WEB_SKIP_VERSION_CHECK"
)

var versionPattern = regexp.MustCompile(`^([0-9]+\.[0-9]+\.[0-9]+)`)

// Config holds configuration for CLI discovery.
type Config struct {
	// CliPath is an explicit CLI path that skips PATH search.
	CliPath string

	// SkipVersionCheck skips version validation during discovery.
	SkipVersionCheck bool

	// Logger receives discovery diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Discoverer locates the Claude CLI binary.
type Discoverer interface {
	// Discover returns the absolute path to the CLI binary.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new CLI discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "cli_discovery"),
	}
}

// Discover locates the Claude CLI binary and validates its version.
// A version below MinimumVersion is logged, never fatal.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	cliPath, err := d.findCLI()
	if err != nil {
		d.log.Error("Claude CLI not found", "error", err)

		return "", err
	}

	d.log.Debug("Found Claude CLI binary", "cli_path", cliPath)

	if !d.cfg.SkipVersionCheck && os.Getenv(EnvSkipVersionCheck) == "" {
		d.checkVersion(ctx, cliPath)
	}

	return cliPath, nil
}

func (d *discoverer) findCLI() (string, error) {
	if d.cfg.CliPath != "" {
		if _, err := os.Stat(d.cfg.CliPath); err == nil {
			return d.cfg.CliPath, nil
		}

		return "", &errors.CLINotFoundError{SearchedPaths: []string{d.cfg.CliPath}}
	}

	if path, err := exec.LookPath("claude"); err == nil {
		return path, nil
	}

	searched := []string{"$PATH"}

	candidates := []string{"/usr/local/bin/claude", "/usr/bin/claude"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local/bin/claude"))
	}

	for _, path := range candidates {
		searched = append(searched, path)

		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", &errors.CLINotFoundError{SearchedPaths: searched}
}

// checkVersion runs `cli -v` and warns when the version is too old.
// Probe failures are ignored.
func (d *discoverer) checkVersion(ctx context.Context, cliPath string) {
	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, cliPath, "-v").Output()
	if err != nil {
		d.log.Debug("CLI version probe failed", "error", err)

		return
	}

	match := versionPattern.FindStringSubmatch(strings.TrimSpace(string(output)))
	if match == nil {
		d.log.Debug("Unrecognized CLI version output", "output", string(output))

		return
	}

	if compareVersions(match[1], MinimumVersion) < 0 {
		d.log.Warn("Claude CLI is older than the supported minimum",
			"version", match[1],
			"minimum_required", MinimumVersion,
		)
	}
}

// compareVersions compares two dotted versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		var aNum, bNum int

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
	}

	return 0
}
