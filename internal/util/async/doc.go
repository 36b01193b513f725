// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes node-scoped operations concurrently and joins
// them before returning, so a phase never proceeds while one of its
// broadcast operations is still in flight.
package async
