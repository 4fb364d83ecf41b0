// Package config provides YAML configuration loading and validation for the
// acquisition host: transport selection, session timeouts, output paths,
// monitoring and logging.
package config
