// Package retry provides exponential backoff retry logic for transient
// failures and deadline-bounded polling.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay and maximum delay. It is used for SSH connection
// establishment. [Poll] evaluates a condition at a fixed interval until it
// reports done or the context deadline passes; the readiness waiter is
// built on it.
package retry
