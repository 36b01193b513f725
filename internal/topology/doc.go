// Package topology classifies a set of PE infrastructure nodes into one of
// the supported architectures and splits compilers into availability
// groups.
//
// [Build] is a pure function over the declared host slots and the trusted
// facts read from each node. Its result is never mutated afterwards.
package topology
