// Package config handles configuration loading for the assistant client.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; running without a
// config file at all uses Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ASSIST_CONFIG environment variable
//  2. ~/.config/assist/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  url: "${ASSIST_SERVER_URL}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  timeout: "30s"
//
// # Example
//
//	server:
//	  url: "http://127.0.0.1:8000"
//	  timeout: "30s"
//	guest:
//	  database_path: "~/.local/share/assist/guest.db"
//	  max_threads: 1
//	  max_messages: 10
//	logging:
//	  level: "info"
//	  format: "text"
package config
