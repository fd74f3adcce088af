// Package config handles configuration loading for fold-sessions.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults; a
// missing config file simply yields the defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FOLD_SESSIONS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/fold-sessions/config.yaml
//  3. ~/.config/fold-sessions/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${FOLD_SESSIONS_DB}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "/var/lib/fold-sessions/sessions.db"
//
// An empty path uses the store default under the user data directory.
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
