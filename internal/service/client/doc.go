// Package client implements the one-shot sos-ctl commands: status, cancel and raise.
//
// Each command connects to the sos-server, performs one call (optionally
// retried until the server answers) and prints the resulting state as JSON.
package client
