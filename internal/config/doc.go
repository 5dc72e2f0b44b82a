// Package config provides configuration loading and validation for the
// ForkStream receiver. It handles YAML-based configuration with struct
// validation and sensible defaults when no file is supplied.
package config
