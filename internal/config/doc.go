// Package config loads, validates, and defaults KHome configuration from
// TOML files.
package config
