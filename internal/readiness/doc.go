// Package readiness polls PE service status and node reachability until
// they succeed or a deadline passes. A deadline is reported as a
// *TimeoutError and never retried here.
package readiness
