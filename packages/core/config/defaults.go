package config

import (
	"github.com/spf13/viper"

	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

const (
	DefaultTimeout          = 30000
	DefaultRetryInterval    = 500
	DefaultRetryMaxInterval = 10000
	DefaultReporter         = "console"
	DefaultLogLevel         = "info"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		ValidateSSL: BoolPtr(true),
		Retry: RetryConfig{
			Backoff:     http.BackoffExponential,
			Interval:    DefaultRetryInterval,
			MaxInterval: DefaultRetryMaxInterval,
			Jitter:      BoolPtr(true),
			StatusCodes: append([]int(nil), http.DefaultRetryStatusCodes...),
		},
		Report: ReportConfig{
			Reporter: DefaultReporter,
		},
		LogLevel: DefaultLogLevel,
	}
}

// setDefaults registers every key with viper so that environment overrides
// apply even when no config file sets them.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("validate_ssl", *d.ValidateSSL)
	v.SetDefault("proxy", d.Proxy)
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("database", d.Database)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.backoff", d.Retry.Backoff)
	v.SetDefault("retry.interval", d.Retry.Interval)
	v.SetDefault("retry.max_interval", d.Retry.MaxInterval)
	v.SetDefault("retry.jitter", *d.Retry.Jitter)
	v.SetDefault("retry.status_codes", d.Retry.StatusCodes)

	v.SetDefault("report.reporter", d.Report.Reporter)
	v.SetDefault("report.output_path", d.Report.OutputPath)
	v.SetDefault("report.template", d.Report.Template)
	v.SetDefault("report.hide_request.headers", []string{})
	v.SetDefault("report.hide_request.params", []string{})
	v.SetDefault("report.hide_request.body", []string{})
	v.SetDefault("report.hide_response.headers", []string{})
	v.SetDefault("report.hide_response.body", []string{})
}
