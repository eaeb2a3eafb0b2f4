// Package configs manages cipherdesk's configuration and filesystem layout.
//
// Configuration is a single TOML file at $XDG_CONFIG_HOME/cipherdesk/config.toml:
//
//	[user]
//	id = "2f0c..."            # assigned on first use
//	email = "alice@example.com"
//
//	[storage]
//	database = "/path/to/cipherdesk.db"   # optional
//
//	[vault]
//	iterations = 100000
//
//	[revoke]
//	rekey = false
//
//	[migrate]
//	concurrency = 4
//
// The user ID is generated on first use and identifies the user's vault in
// the store. Unknown keys are rejected so typos do not silently fall back
// to defaults.
//
// # Settings
//
// CipherdeskSettings is initialized at startup with the config file path,
// the data directory (database and audit log) and the runtime directory
// that holds the unlocked session key.
package configs
