// Package cliconfig loads the handoverd configuration from flags, the
// environment, and an optional TOML file, in that order of precedence.
package cliconfig
