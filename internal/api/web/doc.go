// Package web serves the browser-facing surface of the coordinator: a status
// page, a JSON snapshot, a server-sent events channel carrying the same
// notifications as the gRPC Watch stream, prometheus metrics and a health check.
package web
