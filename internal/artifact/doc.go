// Package artifact locates and stages the Puppet Enterprise installer
// tarball on install targets.
//
// The tarball name depends on the target platform, which is detected from
// the primary. Staging is all-or-nothing: [Stager.Ensure] either leaves a
// complete tarball on every target or returns an error wrapping
// [ErrTransfer].
package artifact
