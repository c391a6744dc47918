// Package logging configures the zerolog logger shared by the client, the
// transport and the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "GSLOC_LOG_LEVEL"
	EnvLogFormat    = "GSLOC_LOG_FORMAT"
	EnvLogNoColor   = "GSLOC_LOG_NOCOLOR"
	EnvLogTimestamp = "GSLOC_LOG_TIMESTAMP"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config selects level and output format of the logger.
type Config struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	NoColor   bool   `toml:"no_color"`
	Timestamp bool   `toml:"timestamp"`
}

var configureOnce sync.Once

func DefaultConfig(profile Profile) Config {
	cfg := Config{Format: FormatConsole}
	switch profile {
	case ProfileTest:
		cfg.Level = "debug"
		cfg.NoColor = true
		cfg.Timestamp = false
	default:
		cfg.Level = "info"
		cfg.Timestamp = true
	}
	return cfg
}

// ConfigureRuntime installs the runtime profile with environment overrides.
// Only the first call of ConfigureRuntime or ConfigureTests has an effect.
func ConfigureRuntime() {
	configureProfile(ProfileRuntime)
}

// ConfigureTests installs the test profile with environment overrides.
func ConfigureTests() {
	configureProfile(ProfileTest)
}

func configureProfile(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		ApplyEnv(&cfg)
		if err := Configure(cfg); err != nil {
			// env overrides are parsed leniently, so only a bad default lands here
			_ = Configure(DefaultConfig(profile))
		}
	})
}

// Configure replaces the global logger with one built from cfg, writing to stderr.
func Configure(cfg Config) error {
	return ConfigureOutput(cfg, os.Stderr)
}

// ConfigureOutput replaces the global logger with one built from cfg, writing to out.
func ConfigureOutput(cfg Config, out io.Writer) error {
	logger, err := New(cfg, out)
	if err != nil {
		return err
	}
	log.Logger = logger
	return nil
}

// New builds a logger writing to out.
func New(cfg Config, out io.Writer) (zerolog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), err
	}
	level, _ := ParseLevel(cfg.Level)

	w := out
	if cfg.Format == FormatConsole {
		cw := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		w = cw
	}

	ctx := zerolog.New(w).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger(), nil
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func (c Config) Validate() error {
	if _, ok := ParseLevel(c.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	switch c.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q, want %s or %s", c.Format, FormatConsole, FormatJSON)
	}
	return nil
}

// ApplyEnv overrides cfg from the GSLOC_LOG_* environment variables.
func ApplyEnv(cfg *Config) {
	ApplyLookup(cfg, os.LookupEnv)
}

// ApplyLookup overrides cfg from the variables lookup resolves. Values that do
// not parse are ignored.
func ApplyLookup(cfg *Config, lookup func(string) (string, bool)) {
	if raw, ok := lookup(EnvLogLevel); ok {
		if _, valid := ParseLevel(raw); valid {
			cfg.Level = strings.ToLower(strings.TrimSpace(raw))
		}
	}
	if raw, ok := lookup(EnvLogFormat); ok {
		switch format := strings.ToLower(strings.TrimSpace(raw)); format {
		case FormatConsole, FormatJSON:
			cfg.Format = format
		}
	}
	if raw, ok := lookup(EnvLogNoColor); ok {
		if v, valid := parseBool(raw); valid {
			cfg.NoColor = v
		}
	}
	if raw, ok := lookup(EnvLogTimestamp); ok {
		if v, valid := parseBool(raw); valid {
			cfg.Timestamp = v
		}
	}
}

// ParseLevel maps a level name to its zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
