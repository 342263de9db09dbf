package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 100
	MinTimeout     = 100 * time.Millisecond
	MaxTimeout     = 30 * time.Second
)

type Config struct {
	Global    GlobalConfig   `yaml:"global" json:"global" mapstructure:"global"`
	Wordlists WordlistConfig `yaml:"wordlists" json:"wordlists" mapstructure:"wordlists"`
	Passive   PassiveConfig  `yaml:"passive" json:"passive" mapstructure:"passive"`
	DNS       DNSConfig      `yaml:"dns" json:"dns" mapstructure:"dns"`
	HTTP      HTTPConfig     `yaml:"http" json:"http" mapstructure:"http"`
	Metrics   MetricsConfig  `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
}

type GlobalConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format" mapstructure:"log_format"`
	LogFile   string `yaml:"log_file" json:"log_file" mapstructure:"log_file"`
}

type WordlistConfig struct {
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

type PassiveConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Endpoint  string        `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
	CTLogs    CTLogsConfig  `yaml:"ct_logs" json:"ct_logs" mapstructure:"ct_logs"`
}

type CTLogsConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	LogURLs  []string `yaml:"log_urls" json:"log_urls" mapstructure:"log_urls"`
	TailSize int64    `yaml:"tail_size" json:"tail_size" mapstructure:"tail_size"`
}

type DNSConfig struct {
	Nameservers []string      `yaml:"nameservers" json:"nameservers" mapstructure:"nameservers"`
	RecordTypes []string      `yaml:"record_types" json:"record_types" mapstructure:"record_types"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Concurrency int           `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64       `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Concurrency  int           `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
	MaxRedirects int           `yaml:"max_redirects" json:"max_redirects" mapstructure:"max_redirects"`
	VerifyTLS    bool          `yaml:"verify_tls" json:"verify_tls" mapstructure:"verify_tls"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
	// Proxy is an http, https, socks5 or socks5h URL. Empty means the
	// standard proxy environment variables apply.
	Proxy string `yaml:"proxy,omitempty" json:"proxy,omitempty" mapstructure:"proxy"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr" mapstructure:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Wordlists: WordlistConfig{
			Dir: "./wordlists",
		},
		Passive: PassiveConfig{
			Enabled:   false,
			Endpoint:  "https://crt.sh/",
			Timeout:   10 * time.Second,
			RateLimit: 1,
			UserAgent: "subprobe/1.0",
			CTLogs: CTLogsConfig{
				Enabled:  false,
				LogURLs:  []string{"https://ct.googleapis.com/logs/us1/argon2025h2/"},
				TailSize: 256,
			},
		},
		DNS: DNSConfig{
			RecordTypes: []string{"A"},
			Timeout:     5 * time.Second,
			Concurrency: 30,
		},
		HTTP: HTTPConfig{
			Timeout:      5 * time.Second,
			Concurrency:  30,
			MaxRedirects: 10,
			VerifyTLS:    false,
			UserAgent:    "Mozilla/5.0 (compatible; subprobe/1.0)",
		},
	}
}

// Validate reports every out-of-range setting as a *ConfigurationError,
// joined into a single error.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Global.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		errs = append(errs, &ConfigurationError{Field: "global.log_level", Value: c.Global.LogLevel,
			Reason: "must be one of trace|debug|info|warn|error|fatal|panic"})
	}
	switch strings.ToLower(c.Global.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, &ConfigurationError{Field: "global.log_format", Value: c.Global.LogFormat,
			Reason: "must be text or json"})
	}

	if err := c.DNS.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Passive.Timeout <= 0 {
		errs = append(errs, &ConfigurationError{Field: "passive.timeout", Value: c.Passive.Timeout.String(), Reason: "must be > 0"})
	}
	if c.Passive.RateLimit < 0 {
		errs = append(errs, &ConfigurationError{Field: "passive.rate_limit", Value: fmt.Sprint(c.Passive.RateLimit), Reason: "must be >= 0"})
	}
	if c.Passive.CTLogs.Enabled {
		if len(c.Passive.CTLogs.LogURLs) == 0 {
			errs = append(errs, &ConfigurationError{Field: "passive.ct_logs.log_urls", Reason: "must not be empty when CT logs are enabled"})
		}
		if c.Passive.CTLogs.TailSize <= 0 {
			errs = append(errs, &ConfigurationError{Field: "passive.ct_logs.tail_size", Value: fmt.Sprint(c.Passive.CTLogs.TailSize), Reason: "must be > 0"})
		}
	}

	return errors.Join(errs...)
}

func (c DNSConfig) Validate() error {
	var errs []error
	if err := ValidateConcurrency("dns.concurrency", c.Concurrency); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateTimeout("dns.timeout", c.Timeout); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit < 0 {
		errs = append(errs, &ConfigurationError{Field: "dns.rate_limit", Value: fmt.Sprint(c.RateLimit), Reason: "must be >= 0"})
	}
	for _, rt := range c.RecordTypes {
		switch strings.ToUpper(rt) {
		case "A", "AAAA":
		default:
			errs = append(errs, &ConfigurationError{Field: "dns.record_types", Value: rt, Reason: "only A and AAAA are supported"})
		}
	}
	return errors.Join(errs...)
}

func (c HTTPConfig) Validate() error {
	var errs []error
	if err := ValidateConcurrency("http.concurrency", c.Concurrency); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateTimeout("http.timeout", c.Timeout); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, &ConfigurationError{Field: "http.max_redirects", Value: fmt.Sprint(c.MaxRedirects), Reason: "must be >= 0"})
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		switch {
		case err != nil:
			errs = append(errs, &ConfigurationError{Field: "http.proxy", Value: c.Proxy, Reason: err.Error()})
		case u.Host == "":
			errs = append(errs, &ConfigurationError{Field: "http.proxy", Value: c.Proxy, Reason: "missing host"})
		default:
			switch strings.ToLower(u.Scheme) {
			case "http", "https", "socks5", "socks5h":
			default:
				errs = append(errs, &ConfigurationError{Field: "http.proxy", Value: c.Proxy, Reason: "scheme must be http, https, socks5 or socks5h"})
			}
		}
	}
	return errors.Join(errs...)
}

func ValidateConcurrency(field string, n int) error {
	if n < MinConcurrency || n > MaxConcurrency {
		return &ConfigurationError{
			Field:  field,
			Value:  fmt.Sprint(n),
			Reason: fmt.Sprintf("must be in %d..%d", MinConcurrency, MaxConcurrency),
		}
	}
	return nil
}

func ValidateTimeout(field string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return &ConfigurationError{
			Field:  field,
			Value:  d.String(),
			Reason: fmt.Sprintf("must be in %s..%s", MinTimeout, MaxTimeout),
		}
	}
	return nil
}

// SecondsToDuration converts the float seconds used on the CLI and in
// requests into a time.Duration.
func SecondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomically write config: %w", err)
	}
	return nil
}

func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	}

	return c.Validate()
}
