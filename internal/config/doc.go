// Package config loads, normalizes, and validates billexact configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BILLEXACT_DB, UTBMS_SEEDS, BILLEXACT_MIN_FOCUS_SEC and
// BILLEXACT_MERGE_WINDOW_MIN. Environment values only fill settings the file
// left empty; built-in defaults apply after that.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
