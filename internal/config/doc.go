// Package config loads, normalizes, and validates signframes configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SIGNFRAMES_OUTPUT_DIR. The Config type centralizes every knob the extraction
// pipeline and CLI need: output and state locations, dataset source, crop and
// quality settings, ffmpeg filters, and pose-estimator wiring.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
