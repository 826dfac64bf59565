// Package watcher follows the live notification stream of a sos-server and
// reconnects whenever the stream breaks.
package watcher
