// Package advisory talks to a chat-completions service that turns alert
// context into short guidance for responders.
//
// A call is bounded by a timeout and never retried; every failure is reported
// as one of the package sentinels so callers can substitute fallback text.
package advisory
