// Package remote defines how peupgrade addresses and runs commands on
// infrastructure nodes.
//
// A [Target] is parsed from a Bolt-style host spec
// ("[protocol://][user@]host[:port]"). An [Executor] runs shell commands,
// uploads files and checks reachability; the [Router] dispatches to the
// executor registered for a target's protocol (ssh, local or pcp).
package remote
