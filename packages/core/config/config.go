package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "APISCAN"

// Config represents the apiscan configuration
type Config struct {
	Timeout     int               `mapstructure:"timeout" yaml:"timeout"` // milliseconds
	RateLimit   float64           `mapstructure:"rate_limit" yaml:"rate_limit"`
	ValidateSSL *bool             `mapstructure:"validate_ssl" yaml:"validate_ssl"`
	Proxy       string            `mapstructure:"proxy" yaml:"proxy,omitempty"`
	Headers     map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Database    string            `mapstructure:"database" yaml:"database,omitempty"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Report      ReportConfig      `mapstructure:"report" yaml:"report"`
	LogLevel    string            `mapstructure:"log_level" yaml:"log_level"`
}

type RetryConfig struct {
	MaxRetries  int    `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff     string `mapstructure:"backoff" yaml:"backoff"`
	Interval    int    `mapstructure:"interval" yaml:"interval"`         // milliseconds
	MaxInterval int    `mapstructure:"max_interval" yaml:"max_interval"` // milliseconds
	Jitter      *bool  `mapstructure:"jitter" yaml:"jitter"`
	StatusCodes []int  `mapstructure:"status_codes" yaml:"status_codes"`
}

type ReportConfig struct {
	Reporter     string       `mapstructure:"reporter" yaml:"reporter"`
	OutputPath   string       `mapstructure:"output_path" yaml:"output_path,omitempty"`
	Template     string       `mapstructure:"template" yaml:"template,omitempty"`
	HideRequest  HideRequest  `mapstructure:"hide_request" yaml:"hide_request,omitempty"`
	HideResponse HideResponse `mapstructure:"hide_response" yaml:"hide_response,omitempty"`
}

// HideRequest names the request fields whose values are masked in reports.
type HideRequest struct {
	Headers []string `mapstructure:"headers" yaml:"headers,omitempty"`
	Params  []string `mapstructure:"params" yaml:"params,omitempty"`
	Body    []string `mapstructure:"body" yaml:"body,omitempty"`
}

type HideResponse struct {
	Headers []string `mapstructure:"headers" yaml:"headers,omitempty"`
	Body    []string `mapstructure:"body" yaml:"body,omitempty"`
}

// Error reports a configuration file that could not be read or decoded.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "invalid configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetJitter returns the backoff jitter setting, defaulting to true
func (r RetryConfig) GetJitter() bool {
	return getBool(r.Jitter, true)
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// RetryPolicy converts the retry section for the HTTP client.
func (c *Config) RetryPolicy() (http.RetryPolicy, error) {
	if c.Retry.MaxRetries <= 0 {
		return http.NoRetry, nil
	}

	interval := time.Duration(c.Retry.Interval) * time.Millisecond
	maxInterval := time.Duration(c.Retry.MaxInterval) * time.Millisecond
	backoff, err := http.NewBackoff(c.Retry.Backoff, interval, maxInterval, c.Retry.GetJitter())
	if err != nil {
		return http.RetryPolicy{}, &Error{Err: err}
	}

	codes := c.Retry.StatusCodes
	if len(codes) == 0 {
		codes = http.DefaultRetryStatusCodes
	}
	return http.RetryPolicy{
		MaxRetries:  c.Retry.MaxRetries,
		Backoff:     backoff,
		StatusCodes: codes,
		MaxInterval: maxInterval,
	}, nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".apiscan.yaml",
	".apiscan.yml",
	".apiscan.json",
	"apiscan.yaml",
}

// LoadConfig loads configuration from the specified path or searches the
// working directory for a config file.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return load(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory. The
// defaults, with environment overrides applied, are returned when none exists.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return load(configPath)
		}
	}
	return load("")
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, &Error{Path: path, Err: fmt.Errorf("config file not found")}
			}
			return nil, &Error{Path: path, Err: err}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at run time.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	switch c.Retry.Backoff {
	case "", http.BackoffFixed, http.BackoffExponential:
	default:
		return fmt.Errorf("retry.backoff must be %q or %q, got %q", http.BackoffFixed, http.BackoffExponential, c.Retry.Backoff)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Database != "" {
		result.Database = other.Database
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if other.Retry.MaxRetries > 0 {
		result.Retry.MaxRetries = other.Retry.MaxRetries
	}
	if other.Retry.Backoff != "" {
		result.Retry.Backoff = other.Retry.Backoff
	}
	if other.Retry.Interval > 0 {
		result.Retry.Interval = other.Retry.Interval
	}
	if other.Retry.MaxInterval > 0 {
		result.Retry.MaxInterval = other.Retry.MaxInterval
	}
	if other.Retry.Jitter != nil {
		result.Retry.Jitter = other.Retry.Jitter
	}
	if len(other.Retry.StatusCodes) > 0 {
		result.Retry.StatusCodes = other.Retry.StatusCodes
	}

	if other.Report.Reporter != "" {
		result.Report.Reporter = other.Report.Reporter
	}
	if other.Report.OutputPath != "" {
		result.Report.OutputPath = other.Report.OutputPath
	}
	if other.Report.Template != "" {
		result.Report.Template = other.Report.Template
	}

	return &result
}
