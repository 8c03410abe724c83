// Package cli turns command-line arguments into an app.Config. Flags override
// values from an optional YAML config file, which in turn override defaults.
package cli
