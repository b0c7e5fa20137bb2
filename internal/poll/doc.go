// Package poll implements the bounded readiness wait used between bootstrap
// actions.
//
// A Poller invokes a Condition's check at a fixed interval, the first check
// happening one interval after the call, until the check reports ready or the
// accumulated wait reaches the condition's timeout. A timeout is reported as
// a *TimeoutError so callers can decide, through a Policy, whether it aborts
// the current step or is merely logged.
//
// Check errors never abort a wait on their own: they are treated as "not
// ready yet" and the most recent one is carried in the timeout diagnostic.
// Wrap an error with Abort to stop waiting immediately.
package poll
