// Package installer wraps puppet-enterprise-installer for one node.
//
// The wrapper issues its steps through a [remote.Runner], so the same
// sequence runs on a remote node during an upgrade or on the local machine
// through `peupgrade install`.
//
// Clustered installs need two workarounds. The installer waits a long time
// for pe-puppetdb, which cannot start while its database is still on the
// old release, so a systemd drop-in caps start and stop at one second for
// the duration of the run. The installer then exits 1 even though the node
// is usable; [Reinterpret] turns that into success when the core services
// are active.
package installer
