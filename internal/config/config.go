package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "NEBULALENS_"

type Config struct {
	APIBaseURL         string        `yaml:"api_base_url"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	TypewriterInterval time.Duration `yaml:"typewriter_interval"`
	// LogCapacity of zero keeps every prediction log entry for the session.
	LogCapacity        int           `yaml:"log_capacity"`
	LogFile            string        `yaml:"log_file"`
	LogLevel           string        `yaml:"log_level"`
	FeaturesFile       string        `yaml:"features_file"`
}

func Default() Config {
	return Config{
		APIBaseURL:         "http://127.0.0.1:8000",
		RequestTimeout:     45 * time.Second,
		TypewriterInterval: 20 * time.Millisecond,
		LogFile:            "nebulalens.log",
		LogLevel:           "info",
	}
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load layers defaults, the optional YAML file at path and NEBULALENS_*
// variables from lookup. It does not validate: command-line overrides still
// apply on top, so callers run Validate once on the final Config.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := mergeEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	resolved, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("resolve config path %q: %w", path, err)
	}
	blob, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", resolved, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %q: %w", resolved, err)
	}
	return nil
}

func mergeEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		value, ok := lookup(envPrefix + name)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	if v, ok := get("API_BASE_URL"); ok {
		cfg.APIBaseURL = v
	}
	if v, ok := get("REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err)
		}
		cfg.RequestTimeout = d
	}
	if v, ok := get("TYPEWRITER_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTYPEWRITER_INTERVAL: %w", envPrefix, err)
		}
		cfg.TypewriterInterval = d
	}
	if v, ok := get("LOG_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sLOG_CAPACITY: %w", envPrefix, err)
		}
		cfg.LogCapacity = n
	}
	if v, ok := get("LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("FEATURES_FILE"); ok {
		cfg.FeaturesFile = v
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	parsed, err := url.Parse(strings.TrimSpace(c.APIBaseURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("api_base_url must be an absolute http(s) URL, got %q", c.APIBaseURL))
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if c.TypewriterInterval <= 0 {
		problems = append(problems, "typewriter_interval must be positive")
	}
	if c.LogCapacity < 0 {
		problems = append(problems, "log_capacity must be zero (unbounded) or positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
