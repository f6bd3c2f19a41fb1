// Package config loads depot's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/depot/config.toml
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//
// The DEPOT_TOKEN environment variable replaces the token in every case.
//
// # TOML Format
//
//	api_url = "https://fleet.example.com/api"
//	token = "eyJhbGciOi..."
//	role = "manager"          # overrides the token's role claim
//	stale_after = "5m"
//	page_size = 20
//	poll_interval = "30s"
//	request_timeout = "10s"
//	cache_db = "~/.local/share/depot/cache.db"   # "" disables the offline cache
//	log_file = "~/.local/state/depot/depot.log"
//	log_level = "info"        # debug, info, warn, error
//	log_format = "text"       # text or json
//
// Tilde expansion is applied to cache_db and log_file.
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files, TOML
// syntax errors and invalid durations. A missing file is not an error.
package config
