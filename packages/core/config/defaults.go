package config

import "reflect"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         10000, // 10 seconds
		FollowRedirects: boolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     boolPtr(true),
		Concurrency:     5,
		Output:          "console",
		Verbose:         boolPtr(false),
		NoColor:         boolPtr(false),
		LogLevel:        "warn",
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	return reflect.DeepEqual(c, DefaultConfig())
}
