// Package config defines the upgrade configuration: the declared host slots,
// the target Puppet Enterprise version, artifact staging settings and the
// transport options used to reach each node.
//
// Configuration is read from a YAML file ([Load]); operational timeouts come
// from PEUPGRADE_* environment variables ([LoadTimeouts]).
package config
