// Package config builds the desired node configuration and the connection
// parameters from a YAML file, a .env file, the process environment and
// command-line overrides.
//
// Sources are layered by key, each later source replacing the earlier one:
//
//	YAML file < .env file < environment < flags
//
// Keys are the MESHTASTIC_* environment variable names. Empty values mean
// "leave unset" and never replace a value from a lower layer. The result
// is built once and not modified afterwards.
package config
