// Package config loads and validates the notify-gateway YAML configuration,
// expanding ${VAR} environment references and parsing duration strings.
package config
