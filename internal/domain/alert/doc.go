// Package alert contains the core domain types of the alert lifecycle.
//
// It defines the alert Snapshot (what observers may read about the single
// alert slot), the inbound Event and its Classifier, and the Notification
// shapes emitted to observers.
package alert
