// Package config loads and validates sentryd's daemon configuration: the
// archiving, compression, hashing, signing, encryption, backups, auth and
// server sections described in the admin surface's wire documentation.
//
// Configuration is read from a TOML file and then overlaid with environment
// variables prefixed SENTRYD__, using __ as the path separator
// (SENTRYD__BACKUPS__BACKEND=s3 overrides backups.backend). The overlay
// pass runs after the TOML decode so an operator can ship one config file
// across environments and vary only the secrets and backend selection
// through the process environment.
package config
