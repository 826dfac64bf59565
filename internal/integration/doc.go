// Package integration holds end-to-end tests that run sos-server on loopback
// addresses without a device and drive it through its gRPC and HTTP surfaces.
package integration
