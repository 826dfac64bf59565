// Package notify fans coordinator notifications out to live observers.
//
// Delivery is best-effort: each subscriber has a bounded buffer and a
// notification that does not fit is dropped for that subscriber only.
package notify
