// Package s3 provides a read-only client for an S3-compatible mirror of
// Puppet Enterprise release tarballs.
//
// Mirrors are laid out as <bucket>/<version>/<tarball>, the same layout as
// the public pe-builds release bucket.
package s3
