// Package config loads and validates the Arm Control Container configuration.
//
// Precedence: built-in baseline defaults, then an optional acc.yaml file, then
// ACC_* environment variable overrides. The merged result is validated before
// any subsystem starts.
package config
