// Package config loads, normalizes, and validates glass configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a sibling .env file, and honours
// environment fallbacks for speech and embedding credentials. The Config type
// centralizes every knob the CLI and ingestion pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider names, and clear validation errors.
package config
