// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration. Load fills it from CODESHERPA_*
// environment variables; main then overrides fields from flags.
type Config struct {
	Addr           string
	Workspace      string
	Interpreter    []string
	Shell          []string
	Timeout        time.Duration
	MaxBodyBytes   int64
	MaxUploadBytes int64
	MaxOutputBytes int
	GeoIPDB        string // Optional MaxMind .mmdb path for access logs.
	KafkaBrokers   []string
	KafkaTopic     string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:           ":3333",
		Workspace:      "workspace",
		Interpreter:    []string{"python3", "-"},
		Shell:          []string{"sh", "-c"},
		Timeout:        30 * time.Second,
		MaxBodyBytes:   1 << 20,
		MaxUploadBytes: 32 << 20,
		MaxOutputBytes: 1 << 20,
		KafkaTopic:     "codesherpa.executions",
	}
}

// Load returns Default overridden by the environment.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	fields := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.Fields(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = SplitList(v)
		}
	}
	i64 := func(key string, dst *int64) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	str("CODESHERPA_ADDR", &c.Addr)
	str("CODESHERPA_WORKSPACE", &c.Workspace)
	fields("CODESHERPA_INTERPRETER", &c.Interpreter)
	fields("CODESHERPA_SHELL", &c.Shell)
	if v, ok := lookup("CODESHERPA_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CODESHERPA_TIMEOUT: %w", err))
		} else {
			c.Timeout = d
		}
	}
	i64("CODESHERPA_MAX_BODY", &c.MaxBodyBytes)
	i64("CODESHERPA_MAX_UPLOAD", &c.MaxUploadBytes)
	maxOut := int64(c.MaxOutputBytes)
	i64("CODESHERPA_MAX_OUTPUT", &maxOut)
	c.MaxOutputBytes = int(maxOut)
	str("CODESHERPA_GEOIP_DB", &c.GeoIPDB)
	list("CODESHERPA_KAFKA_BROKERS", &c.KafkaBrokers)
	str("CODESHERPA_KAFKA_TOPIC", &c.KafkaTopic)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that limits are positive and commands are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Workspace == "" {
		errs = append(errs, errors.New("workspace is required"))
	}
	if len(c.Interpreter) == 0 {
		errs = append(errs, errors.New("interpreter is required"))
	}
	if len(c.Shell) == 0 {
		errs = append(errs, errors.New("shell is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("max output bytes must be positive, got %d", c.MaxOutputBytes))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
