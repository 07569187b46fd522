// Package config loads scheduler configuration from a YAML file, overlays
// environment variables and validates the result. Watch reloads the file
// when it changes on disk.
package config
