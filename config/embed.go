// Package config provides the embedded default configuration for sibyl.
package config

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration in YAML
// format. The `sibyl config create` command writes it to ~/.sibylrc as
// a starting point.
//
//go:embed config.default.yaml
var DefaultConfigYAML []byte
