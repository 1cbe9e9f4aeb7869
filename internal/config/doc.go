// Package config loads, normalizes, and validates toolbox configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REPLICATE_API_TOKEN. The Config type centralizes the knobs the CLI and the
// daemon need: where settings and state live, the conversion defaults, the
// remote job client tuning, and the external encoder binaries.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
