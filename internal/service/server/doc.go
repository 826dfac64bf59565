// Package server runs the sos-server daemon: the device listener, the alert
// coordinator and its gRPC and HTTP surfaces.
package server
