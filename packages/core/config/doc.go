// Package config handles configuration loading and management for hitcase.
//
// It provides functionality for:
//   - Loading configuration from .hitcase.config.json, hitcase.config.json,
//     .hitcaserc or .hitcaserc.json
//   - Default configuration values
//   - Merging command-line overrides and converting to runner settings
package config
