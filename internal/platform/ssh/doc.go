// Package ssh provides an SSH client for executing commands on remote servers.
//
// It is the default transport for reaching Puppet Enterprise nodes: the
// upgrade orchestrator reads trusted facts, stages the installer tarball
// and runs the installer wrapper through it. The client supports key-based
// authentication, known_hosts verification and configurable retry logic.
package ssh
