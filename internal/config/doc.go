// Package config provides configuration management for the fetcher.
//
// This package handles:
//   - Loading settings from a JSON file with environment overrides
//   - Default configuration values
//   - Conversion to http.Options and fetch options for other packages
//   - Building the global zap logger
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Downloads/fetcher
//	// Four concurrent fetches, 4 KiB read buffer
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	// Missing files fall back to defaults. Environment variables prefixed
//	// with FETCH_ override file values, e.g. FETCH_HTTP_USER_AGENT.
//
// # Saving Settings
//
//	settings.OutputDir = "/custom/path"
//	err := settings.Save("/path/to/config.json")
package config
