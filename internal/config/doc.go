// Package config loads the imehost settings file.
//
// Settings live in a single TOML file:
//
//	[keyboard]
//	suggestions = true
//	corrections = true
//	candidates_per_row = 4
//
//	[engines]
//	dir = "imes"
//
//	[layouts]
//	file = "layouts.yaml"
//	default = "en"
//
//	[log]
//	level = "info"
//	file = "imehost.log"
//
// A missing file yields the defaults. Relative paths are resolved against the
// directory holding the settings file. Environment variables prefixed with
// IMEHOST_ override individual keys (see EnvOverrides).
//
// A Store keeps the current settings and reloads them when the file changes
// on disk. Engines see the keyboard section through Store.Snapshot at
// activation time.
package config
