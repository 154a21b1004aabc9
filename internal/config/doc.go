// Package config loads, normalizes, and validates vidsum configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks such as OPENROUTER_API_KEY, GEMINI_API_KEY,
// WHISPER_API_URL, and HF_TOKEN.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
