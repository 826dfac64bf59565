// Package common holds helpers shared by the sos-ctl commands.
//
// It provides a lightweight gRPC client wrapper with timeouts and caller
// identification, and a helper that detects the current "user@host".
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
