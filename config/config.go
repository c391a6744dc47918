// Package config assembles client settings from defaults, an optional TOML
// file, a .env file and GSLOC_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/gsloc/gsloc/logging"
	"github.com/gsloc/gsloc/transport"
	"github.com/gsloc/gsloc/wloc"
)

const (
	EnvURL         = "GSLOC_URL"
	EnvUserAgent   = "GSLOC_USER_AGENT"
	EnvContentType = "GSLOC_CONTENT_TYPE"
	EnvTimeout     = "GSLOC_TIMEOUT"
	EnvNoise       = "GSLOC_NOISE"
	EnvSignal      = "GSLOC_SIGNAL"
)

// DefaultEnvFile is read when Load is given no env files. It may be absent.
const DefaultEnvFile = ".env"

type Config struct {
	Endpoint Endpoint
	Request  Request
	Log      logging.Config
}

// Endpoint describes where and how requests are posted.
type Endpoint struct {
	URL         string
	UserAgent   string
	ContentType string
	Timeout     time.Duration
}

// Request holds the fixed values sent with every query.
type Request struct {
	Noise  int32
	Signal int32
}

// fileConfig mirrors the TOML layout; durations are written as strings.
type fileConfig struct {
	Endpoint struct {
		URL         string `toml:"url"`
		UserAgent   string `toml:"user_agent"`
		ContentType string `toml:"content_type"`
		Timeout     string `toml:"timeout"`
	} `toml:"endpoint"`
	Request struct {
		Noise  int32 `toml:"noise"`
		Signal int32 `toml:"signal"`
	} `toml:"request"`
	Log logging.Config `toml:"log"`
}

func Default() Config {
	return Config{
		Endpoint: Endpoint{
			URL:         transport.DefaultURL,
			UserAgent:   transport.DefaultUserAgent,
			ContentType: transport.DefaultContentType,
			Timeout:     transport.DefaultTimeout,
		},
		Request: Request{
			Noise:  wloc.DefaultNoise,
			Signal: wloc.DefaultSignal,
		},
		Log: logging.DefaultConfig(logging.ProfileRuntime),
	}
}

// Load builds the configuration. path names an optional TOML file; envFiles
// default to DefaultEnvFile, which is skipped when missing. Variables already
// set in the process environment win over .env values.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyLookup(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		values, err := godotenv.Read(DefaultEnvFile)
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", DefaultEnvFile, err)
		}
		return values, nil
	}

	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}
	return values, nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("endpoint", "url") {
		cfg.Endpoint.URL = strings.TrimSpace(raw.Endpoint.URL)
	}
	if meta.IsDefined("endpoint", "user_agent") {
		cfg.Endpoint.UserAgent = raw.Endpoint.UserAgent
	}
	if meta.IsDefined("endpoint", "content_type") {
		cfg.Endpoint.ContentType = strings.TrimSpace(raw.Endpoint.ContentType)
	}
	if meta.IsDefined("endpoint", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Endpoint.Timeout))
		if err != nil {
			return fmt.Errorf("parse endpoint.timeout: %w", err)
		}
		cfg.Endpoint.Timeout = d
	}

	if meta.IsDefined("request", "noise") {
		cfg.Request.Noise = raw.Request.Noise
	}
	if meta.IsDefined("request", "signal") {
		cfg.Request.Signal = raw.Request.Signal
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	return nil
}

func applyLookup(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvURL); ok && strings.TrimSpace(v) != "" {
		cfg.Endpoint.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvUserAgent); ok && v != "" {
		cfg.Endpoint.UserAgent = v
	}
	if v, ok := lookup(EnvContentType); ok && strings.TrimSpace(v) != "" {
		cfg.Endpoint.ContentType = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		cfg.Endpoint.Timeout = d
	}
	if v, ok := lookup(EnvNoise); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvNoise, err)
		}
		cfg.Request.Noise = int32(n)
	}
	if v, ok := lookup(EnvSignal); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvSignal, err)
		}
		cfg.Request.Signal = int32(n)
	}

	logging.ApplyLookup(&cfg.Log, lookup)
	return nil
}

func (c Config) Validate() error {
	if c.Endpoint.URL == "" {
		return errors.New("endpoint url is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint url %q: scheme must be http or https", c.Endpoint.URL)
	}
	if c.Endpoint.Timeout <= 0 {
		return fmt.Errorf("endpoint timeout must be positive, got %v", c.Endpoint.Timeout)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// TransportOptions returns the options for an HTTP poster.
func (c Config) TransportOptions() transport.Options {
	return transport.Options{
		URL:         c.Endpoint.URL,
		UserAgent:   c.Endpoint.UserAgent,
		ContentType: c.Endpoint.ContentType,
		Timeout:     c.Endpoint.Timeout,
	}
}
