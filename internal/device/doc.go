// Package device is the serial link to the panic button board.
//
// The board prints one event per line and accepts short command tokens, one
// per line. Reading drops ill-formed UTF-8 instead of failing, and a link that
// could not be opened degrades to Disconnected so the daemon keeps running.
package device
