// Package config loads, normalizes, and validates voicebatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MINIMAX_API_KEY and MINIMAX_GROUP_ID. The Config type centralizes every knob
// the batch runner and CLI need, from API credentials to poll cadence.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
