// Package preflight provides readiness checks for the directories, binaries
// and remote services glass depends on.
//
// The CLI "glass doctor" command prints every result; "glass serve" runs the
// same checks at startup and logs each failure before resuming work.
// Checks for optional features are only run when the feature is enabled.
package preflight
