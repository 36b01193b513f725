// Package pe wraps the Puppet Enterprise commands the upgrade issues on
// nodes: agent service control, one-off convergence runs, service stops and
// `puppet infrastructure upgrade` on the primary.
package pe
