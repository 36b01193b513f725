// Package upgrade runs the rolling upgrade of a Puppet Enterprise topology.
//
// The upgrade is a fixed sequence of phases, never re-entered:
//
//	Validate → Prepare → UpgradePrimarySide → UpgradeReplicaSide → Finalize
//
// The primary's availability group is upgraded completely before anything
// in the replica's group is touched, so one group always has a working
// database and coordination path.
package upgrade
