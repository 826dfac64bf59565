// Package config defines the YAML settings shared by sos-server and sos-ctl
// and provides helpers to load, validate and save them.
//
// Secrets are never stored in YAML: the advisory API key is read from the
// environment variable named by advisory.api_key_env, which may be seeded from
// a .env file next to the binary.
package config
