// Package ci derives build health from the current window of builds.
//
// Engine holds the builds assigned by the poller for one cycle and answers the
// status queries (BrokenCheck, BuildingCheck) and the one-shot notification
// queries (BuiltCheck, FailedCheck). One-shots share a ledger so a build is
// announced at most once, whichever outcome it had.
package ci
