// Package config loads and validates render settings.
//
// Precedence, lowest to highest: built-in defaults, a JSON or YAML profile,
// DVSVIDEO_* environment variables, then command-line flags that were set
// explicitly.
package config
