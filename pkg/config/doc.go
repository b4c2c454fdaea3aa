// Package config provides configuration management using Viper.
//
// Loads and validates a pclean process's schema path, driver settings,
// persistence sink, and status API from YAML files, with support for
// multiple config locations and default values.
package config
