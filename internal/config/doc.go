// Package config defines the publisher configuration and provides helpers to
// load it from package.json, a config file (YAML, JSON or TOML) and
// PUBLISHER_* environment variables, and to validate it per command.
//
// Sources are applied from lowest to highest precedence: built-in defaults,
// package.json, the config file, environment variables. CLI flags are applied
// on top by the command layer.
package config
