// Package pcp runs commands on Puppet Enterprise nodes through the PE
// orchestrator API and the nodes' pxp-agent ("agent-push" transport).
//
// Commands are submitted as bolt_shim::command task jobs and polled until
// the node reaches a terminal state. The transport cannot upload files and
// is unavailable while the orchestrator service restarts, which is why the
// primary may never be reached over pcp.
package pcp
