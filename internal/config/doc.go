// Package config loads process configuration from defaults, an optional
// .codeindex.toml file, .env files and the environment.
package config
