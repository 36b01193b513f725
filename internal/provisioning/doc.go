// Package provisioning provides shared types, interfaces, and the phase
// pipeline for upgrading a Puppet Enterprise installation.
//
// # Subpackages
//
//   - upgrade/: the rolling upgrade phases
//
// # Core Types
//
// Context carries configuration, the plan, timeouts, and the observer.
// Phase defines an upgrade step with Name() and Provision() methods.
// Plan is built once by validation and read by every later phase.
// Pipeline runs phases in order and collects a PhaseResult for each.
package provisioning
