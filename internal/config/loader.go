package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultThresholds are applied when the review section leaves both cut-offs
// unset.
var defaultThresholds = struct{ critical, warning float64 }{0.5, 0.7}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with working values.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Review.Thresholds.Critical == 0 && cfg.Review.Thresholds.Warning == 0 {
		cfg.Review.Thresholds.Critical = defaultThresholds.critical
		cfg.Review.Thresholds.Warning = defaultThresholds.warning
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := cfg.Review.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("review.thresholds: %w", err))
	}

	if cfg.Classifier.Primary.Name == "" {
		slog.Warn("classifier.primary is not configured; sessions will run without medical-term detection")
		if len(cfg.Classifier.Fallbacks) > 0 {
			errs = append(errs, errors.New("classifier.fallbacks configured without classifier.primary"))
		}
	} else if cfg.Classifier.Primary.Model == "" {
		errs = append(errs, errors.New("classifier.primary.model is required when a primary is configured"))
	}
	for i, fb := range cfg.Classifier.Fallbacks {
		if fb.Name == "" || fb.Model == "" {
			errs = append(errs, fmt.Errorf("classifier.fallbacks[%d]: name and model are required", i))
		}
	}
	if cfg.Classifier.Temperature < 0 || cfg.Classifier.Temperature > 2 {
		errs = append(errs, fmt.Errorf("classifier.temperature %.2f is out of range [0, 2]", cfg.Classifier.Temperature))
	}

	if cfg.Audit.PostgresDSN == "" {
		slog.Warn("audit.postgres_dsn is empty; correction logs will not be persisted")
	}

	return errors.Join(errs...)
}

// LexiconTerms resolves the full term list: inline terms plus the optional
// term file. Missing files are an error; an empty resulting list is allowed
// (suggestions are then simply unavailable).
func (cfg *Config) LexiconTerms() ([]string, error) {
	terms := append([]string(nil), cfg.Lexicon.Terms...)
	if cfg.Lexicon.Path == "" {
		return terms, nil
	}

	data, err := os.ReadFile(cfg.Lexicon.Path)
	if err != nil {
		return nil, fmt.Errorf("config: read lexicon %q: %w", cfg.Lexicon.Path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	return terms, nil
}
