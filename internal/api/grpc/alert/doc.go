// Package alert implements the gRPC transport of the alert coordinator.
//
// The service is described by hand on top of protobuf well-known types, so no
// generated code is needed on either side. Responses are google.protobuf.Struct
// values whose fields mirror the notifications seen by dashboards.
package alert
