// Package coordinator owns the alert lifecycle.
//
// A Coordinator holds the single alert slot. Device lines, control requests
// and the escalation timer all enter through Handle, which runs one event at a
// time: the transition, the timer bookkeeping and the side effects of that
// transition complete before the next event is looked at. Side effects go to
// three collaborators (an Advisor, a CommandSink and a NotificationSink), none
// of which can change the state; their failures are logged and counted.
//
// Advisory calls are made while the transition lock is held. The call is
// bounded by Settings.AdvisoryTimeout, so a burst of events can be delayed by
// at most that long per effect; Snapshot never waits for it.
package coordinator
