// Package config loads, normalizes, and validates the TOML configuration
// consumed by every docmill component.
package config
