// Package config loads, normalizes, and validates carprobe configuration.
//
// Configuration is read from TOML (defaulting to ~/.config/carprobe/config.toml
// or ./carprobe.toml), populated with repository defaults, and expanded so
// every path is absolute. API keys fall back to environment variables when the
// file leaves them empty. Offline and enablement decisions for the external
// services are derived here once and passed to constructors, so no other
// package consults the environment directly.
package config
