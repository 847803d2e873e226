// Package config handles configuration loading and management for apiscan.
//
// It provides functionality for:
//   - Loading configuration from .apiscan.yaml, .apiscan.yml, .apiscan.json
//     or apiscan.yaml files
//   - APISCAN_* environment overrides (APISCAN_RETRY_MAX_RETRIES, ...)
//   - Default configuration values
//   - Merging command line overrides on top of file values
package config
